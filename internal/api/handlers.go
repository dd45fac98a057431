package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/printdeck/internal/apperr"
	"github.com/starford/printdeck/internal/gallery"
	"github.com/starford/printdeck/internal/library"
	"github.com/starford/printdeck/internal/models"
	"github.com/starford/printdeck/internal/modelservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *modelservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *modelservice.Service) *Handler {
	return &Handler{svc: svc}
}

// modelLeaf extracts the model folder name from the URL.
func modelLeaf(r *http.Request) string {
	return chi.URLParam(r, "leaf")
}

// ListModels handles GET /api/models with optional search, material filter,
// and sort.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term := q.Get("q")
	material := q.Get("material")
	sort := gallery.ParseSortKey(q.Get("sort"))

	items, total, err := h.svc.List(r.Context(), term, material, sort)
	if err != nil {
		slog.Error("list models failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ModelListResponse{
		Models: toListItems(items),
		Total:  total,
	})
}

// Materials handles GET /api/materials.
func (h *Handler) Materials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.svc.Materials(r.Context())
	if err != nil {
		slog.Error("materials failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if materials == nil {
		materials = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"materials": materials})
}

// GetModel handles GET /api/models/{leaf}.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	leaf := modelLeaf(r)
	if leaf == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model folder name is required"))
		return
	}
	m, err := h.svc.Get(r.Context(), leaf)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get model failed", slog.String("leaf", leaf), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, toDetail(m))
}

// CreateModel handles POST /api/models. Source paths refer to files on the
// server's filesystem; they are copied into a new model folder.
func (h *Handler) CreateModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" || len(req.ModelPaths) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("name and model_paths are required"))
		return
	}

	createReq := library.CreateRequest{
		Name:        req.Name,
		ModelPaths:  req.ModelPaths,
		PreviewPath: req.PreviewPath,
	}
	for _, g := range req.Gcodes {
		createReq.Gcodes = append(createReq.Gcodes, library.GcodeSource{
			Path:      g.Path,
			Material:  g.Material,
			Colour:    g.Colour,
			PrintTime: g.PrintTime,
		})
	}

	m, err := h.svc.Create(r.Context(), createReq)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("model already exists"))
		} else {
			slog.Error("create model failed", slog.String("name", req.Name), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusCreated, toDetail(m))
}

// UpdateModel handles PUT /api/models/{leaf} with optimistic concurrency
// via the If-Match header (sidecar checksum).
func (h *Handler) UpdateModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	leaf := modelLeaf(r)
	if leaf == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model folder name is required"))
		return
	}

	var sc models.Sidecar
	if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	ifMatch := trimETag(r.Header.Get("If-Match"))

	m, err := h.svc.Update(r.Context(), leaf, sc, ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update model failed", slog.String("leaf", leaf), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, toDetail(m))
}

// DeleteModel handles DELETE /api/models/{leaf}.
func (h *Handler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	leaf := modelLeaf(r)
	if leaf == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model folder name is required"))
		return
	}
	if err := h.svc.Delete(r.Context(), leaf); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("delete model failed", slog.String("leaf", leaf), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetActive handles POST /api/models/{leaf}/active.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	leaf := modelLeaf(r)
	if leaf == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("model folder name is required"))
		return
	}

	var req SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	m, err := h.svc.SetActive(r.Context(), leaf, req.Active)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("set active failed",
				slog.String("leaf", leaf),
				slog.Bool("active", req.Active),
				slog.String("error", err.Error()))
			writeJSON(w, http.StatusConflict, errorBody(err.Error()))
		}
		return
	}
	writeJSON(w, http.StatusOK, toDetail(m))
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	items := make([]SearchResult, len(results))
	for i, res := range results {
		items[i] = SearchResult{Leaf: res.Leaf, Name: res.Name, Snippet: res.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: items})
}

// trimETag strips surrounding quotes if present (standard ETag format).
func trimETag(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
