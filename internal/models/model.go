// Package models defines the domain types for printdeck.
package models

import (
	"strings"
	"time"
)

// GcodeEntry describes one G-code variant of a model.
type GcodeEntry struct {
	File      string `json:"file"`
	Material  string `json:"material"`
	Colour    string `json:"colour"`
	PrintTime string `json:"print_time"`
}

// Sidecar is the on-disk model.json payload. It is the single source of
// truth for a model; in-memory state not yet flushed is provisional.
//
// LegacyModelFile and LegacyStlFile mirror older sidecars that recorded a
// single geometry file; ModelFiles wins when both are present.
type Sidecar struct {
	Name             string       `json:"name"`
	ModelFiles       []string     `json:"model_files"`
	LegacyModelFile  string       `json:"model_file,omitempty"`
	LegacyStlFile    string       `json:"stl_file,omitempty"`
	Gcodes           []GcodeEntry `json:"gcodes"`
	PreviewImage     string       `json:"preview_image,omitempty"`
	PrintTime        string       `json:"print_time,omitempty"`
	Active           bool         `json:"active"`
	ActiveGcodeFiles []string     `json:"active_gcode_files,omitempty"`
	LastModified     string       `json:"last_modified,omitempty"`
	TimeCreated      string       `json:"time_created,omitempty"`
}

// ResolvedModelFiles returns the geometry file list, falling back to the
// legacy single-file keys when model_files is absent.
func (s *Sidecar) ResolvedModelFiles() []string {
	if len(s.ModelFiles) > 0 {
		return s.ModelFiles
	}
	if s.LegacyModelFile != "" {
		return []string{s.LegacyModelFile}
	}
	if s.LegacyStlFile != "" {
		return []string{s.LegacyStlFile}
	}
	return nil
}

// Model is one model folder with fields derived at scan time.
// Folder is the absolute path and is the model's identity.
type Model struct {
	Name         string       `json:"name"`
	Folder       string       `json:"folder"`
	FolderLeaf   string       `json:"folder_leaf"`
	ModelFiles   []string     `json:"model_files"`
	Gcodes       []GcodeEntry `json:"gcodes"`
	PreviewImage string       `json:"preview_image,omitempty"` // absolute path, verified to exist
	Active       bool         `json:"active"`

	ActiveGcodeFiles []string `json:"active_gcode_files,omitempty"`

	// Derived, not persisted.
	Materials        []string  `json:"materials"`
	PrintTime        string    `json:"print_time,omitempty"`
	PrintTimeMinutes int       `json:"print_time_minutes"` // UnknownMinutes when unparseable
	LastModified     time.Time `json:"last_modified"`
	TimeCreated      time.Time `json:"time_created"`
	SearchBlob       string    `json:"-"`
	SidecarChecksum  string    `json:"-"`

	Sidecar Sidecar `json:"-"`
}

// UnknownMinutes sorts models with no parseable print time after everything
// else under the print-time sort.
const UnknownMinutes = int(^uint(0) >> 1)

// HasMaterial reports whether material appears in the model's materials set.
func (m *Model) HasMaterial(material string) bool {
	for _, v := range m.Materials {
		if v == material {
			return true
		}
	}
	return false
}

// MatchesSearch reports whether the lowercased term appears in the model's
// name or search blob. An empty term matches everything.
func (m *Model) MatchesSearch(term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(m.Name), term) ||
		strings.Contains(m.SearchBlob, term)
}
