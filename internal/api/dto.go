package api

import (
	"time"

	"github.com/starford/printdeck/internal/models"
)

// CreateModelRequest is the request body for creating a model package. The
// paths name source files on the server's filesystem.
type CreateModelRequest struct {
	Name        string               `json:"name" validate:"required"`
	ModelPaths  []string             `json:"model_paths" validate:"required"`
	Gcodes      []GcodeSourceRequest `json:"gcodes,omitempty"`
	PreviewPath string               `json:"preview_path,omitempty"`
}

// GcodeSourceRequest is one G-code source in a create request. Metadata
// fields left blank are filled from the file's comments.
type GcodeSourceRequest struct {
	Path      string `json:"path" validate:"required"`
	Material  string `json:"material,omitempty"`
	Colour    string `json:"colour,omitempty"`
	PrintTime string `json:"print_time,omitempty"`
}

// SetActiveRequest is the request body for POST /models/{leaf}/active.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// ModelDetail is the full model response type.
type ModelDetail struct {
	Name             string              `json:"name"`
	Leaf             string              `json:"leaf"`
	ModelFiles       []string            `json:"model_files"`
	Gcodes           []models.GcodeEntry `json:"gcodes"`
	PreviewImage     string              `json:"preview_image,omitempty"`
	Active           bool                `json:"active"`
	ActiveGcodeFiles []string            `json:"active_gcode_files"`
	Materials        []string            `json:"materials"`
	PrintTime        string              `json:"print_time,omitempty"`
	Checksum         string              `json:"checksum"`
	LastModified     time.Time           `json:"last_modified"`
	TimeCreated      time.Time           `json:"time_created"`
}

// ModelListItem is a lightweight item in a list response.
type ModelListItem struct {
	Name         string    `json:"name"`
	Leaf         string    `json:"leaf"`
	Materials    []string  `json:"materials"`
	PrintTime    string    `json:"print_time,omitempty"`
	Active       bool      `json:"active"`
	Checksum     string    `json:"checksum"`
	LastModified time.Time `json:"last_modified"`
}

// ModelListResponse wraps model listings. Total is the library size before
// search and filter.
type ModelListResponse struct {
	Models []ModelListItem `json:"models" validate:"required"`
	Total  int             `json:"total" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Leaf    string `json:"leaf" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Snippet string `json:"snippet" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

func toDetail(m *models.Model) ModelDetail {
	return ModelDetail{
		Name:             m.Name,
		Leaf:             m.FolderLeaf,
		ModelFiles:       nonNilSlice(m.ModelFiles),
		Gcodes:           nonNilSlice(m.Gcodes),
		PreviewImage:     m.PreviewImage,
		Active:           m.Active,
		ActiveGcodeFiles: nonNilSlice(m.ActiveGcodeFiles),
		Materials:        nonNilSlice(m.Materials),
		PrintTime:        m.PrintTime,
		Checksum:         m.SidecarChecksum,
		LastModified:     m.LastModified,
		TimeCreated:      m.TimeCreated,
	}
}

func toListItems(in []*models.Model) []ModelListItem {
	items := make([]ModelListItem, len(in))
	for i, m := range in {
		items[i] = ModelListItem{
			Name:         m.Name,
			Leaf:         m.FolderLeaf,
			Materials:    nonNilSlice(m.Materials),
			PrintTime:    m.PrintTime,
			Active:       m.Active,
			Checksum:     m.SidecarChecksum,
			LastModified: m.LastModified,
		}
	}
	return items
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
