package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/printdeck/internal/apperr"
	"github.com/starford/printdeck/internal/modelservice"
)

const maxPreviewBytes = 20 << 20 // 20 MB

// PreviewHandler serves and accepts model preview images. Previews live
// inside the model's own folder and are referenced from the sidecar.
type PreviewHandler struct {
	modelsRoot string
	svc        *modelservice.Service
}

// NewPreviewHandler creates a handler rooted at the models directory.
func NewPreviewHandler(modelsRoot string, svc *modelservice.Service) *PreviewHandler {
	return &PreviewHandler{modelsRoot: modelsRoot, svc: svc}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// ServeFile handles GET /api/models/{leaf}/preview.
func (h *PreviewHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	leaf := modelLeaf(r)
	m, err := h.svc.Get(r.Context(), leaf)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.NotFound(w, r)
		} else {
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	if m.PreviewImage == "" {
		http.NotFound(w, r)
		return
	}
	// The preview path is derived from the sidecar; only serve it when it
	// resolves inside the models root.
	if !strings.HasPrefix(m.PreviewImage, h.modelsRoot+string(os.PathSeparator)) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, m.PreviewImage)
}

// Upload handles POST /api/models/{leaf}/preview (multipart/form-data,
// field "file"). The image is stored in the model folder and the sidecar's
// preview_image is updated.
func (h *PreviewHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPreviewBytes)
	leaf := modelLeaf(r)

	m, err := h.svc.Get(r.Context(), leaf)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}

	if err := r.ParseMultipartForm(maxPreviewBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	dst, err := os.Create(filepath.Join(m.Folder, name))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create file"))
		return
	}
	written, err := io.Copy(dst, file)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	sc := m.Sidecar
	sc.PreviewImage = name
	if _, err := h.svc.Update(r.Context(), leaf, sc, ""); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to update sidecar"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"filename": name,
		"size":     written,
		"url":      "/api/models/" + leaf + "/preview",
	})
}
