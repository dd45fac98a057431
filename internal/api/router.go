package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/printdeck/internal/modelservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// modelsRoot is used to resolve preview image files.
func NewRouter(svc *modelservice.Service, authEnabled bool, token string, sseHandler http.Handler, modelsRoot string) chi.Router {
	h := NewHandler(svc)
	ph := NewPreviewHandler(modelsRoot, svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Models CRUD.
	r.Get("/models", h.ListModels)
	r.Post("/models", h.CreateModel)
	r.Get("/models/{leaf}", h.GetModel)
	r.Put("/models/{leaf}", h.UpdateModel)
	r.Delete("/models/{leaf}", h.DeleteModel)

	// Active-state transitions.
	r.Post("/models/{leaf}/active", h.SetActive)

	// Preview images.
	r.Get("/models/{leaf}/preview", ph.ServeFile)
	r.Post("/models/{leaf}/preview", ph.Upload)

	// Search and materials.
	r.Get("/search", h.Search)
	r.Get("/materials", h.Materials)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
