// Package modelservice coordinates the library, active-set engine, and
// index behind one API used by the HTTP and MCP surfaces.
package modelservice

import (
	"context"
	"sync"

	"github.com/starford/printdeck/internal/activeset"
	"github.com/starford/printdeck/internal/apperr"
	"github.com/starford/printdeck/internal/gallery"
	"github.com/starford/printdeck/internal/index"
	"github.com/starford/printdeck/internal/library"
	"github.com/starford/printdeck/internal/models"
)

// Publisher receives model change notifications. The SSE broker satisfies
// it; a nil Publisher disables events.
type Publisher interface {
	PublishModelEvent(kind, leaf string)
}

// Service coordinates library, engine, and index operations.
//
// Activation transitions are serialised with a mutex: the engine itself is
// lock-free, and concurrent activations against one active root could
// otherwise race on collision names.
type Service struct {
	lib    *library.Library
	engine *activeset.Engine
	db     *index.DB
	events Publisher

	activateMu sync.Mutex
}

// NewService creates a new model service. events may be nil.
func NewService(lib *library.Library, engine *activeset.Engine, db *index.DB, events Publisher) *Service {
	return &Service{lib: lib, engine: engine, db: db, events: events}
}

// SetPublisher installs the event publisher. Call before serving traffic;
// installation is not synchronised with in-flight operations.
func (s *Service) SetPublisher(p Publisher) {
	s.events = p
}

func (s *Service) publish(kind, leaf string) {
	if s.events != nil {
		s.events.PublishModelEvent(kind, leaf)
	}
}

// List scans the library and applies the gallery query pipeline. The
// returned total is the library size before search and filter.
func (s *Service) List(ctx context.Context, term, material string, sort gallery.SortKey) ([]*models.Model, int, error) {
	scanned, err := s.lib.Scan(ctx)
	if err != nil {
		return nil, 0, err
	}
	return gallery.Query(scanned, term, material, sort), len(scanned), nil
}

// Materials returns the sorted union of materials across the library.
func (s *Service) Materials(ctx context.Context) ([]string, error) {
	scanned, err := s.lib.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return gallery.Materials(scanned), nil
}

// Get loads a single model by folder leaf.
func (s *Service) Get(_ context.Context, leaf string) (*models.Model, error) {
	return s.lib.LoadModel(leaf)
}

// Create builds a new model package, indexes it, and publishes a created
// event.
func (s *Service) Create(_ context.Context, req library.CreateRequest) (*models.Model, error) {
	m, err := s.lib.CreateModel(req)
	if err != nil {
		return nil, err
	}
	if err := s.indexModel(m); err != nil {
		return nil, err
	}
	s.publish("created", m.FolderLeaf)
	return m, nil
}

// Update rewrites a model's sidecar with optimistic concurrency: a
// non-empty ifMatch must equal the current sidecar checksum. The active
// state and creation timestamp survive the edit.
func (s *Service) Update(_ context.Context, leaf string, sc models.Sidecar, ifMatch string) (*models.Model, error) {
	current, err := s.lib.LoadModel(leaf)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != current.SidecarChecksum {
		return nil, apperr.ErrConflict
	}

	sc.Active = current.Sidecar.Active
	sc.ActiveGcodeFiles = append([]string(nil), current.Sidecar.ActiveGcodeFiles...)
	if sc.TimeCreated == "" {
		sc.TimeCreated = current.Sidecar.TimeCreated
	}
	sc.LastModified = library.NowTimestamp()

	if err := s.lib.WriteSidecar(leaf, &sc); err != nil {
		return nil, err
	}
	m, err := s.lib.LoadModel(leaf)
	if err != nil {
		return nil, err
	}
	if err := s.indexModel(m); err != nil {
		return nil, err
	}
	s.publish("updated", leaf)
	return m, nil
}

// Delete removes a model folder and its index row. An active model's
// active-root copies are removed first, best-effort.
func (s *Service) Delete(_ context.Context, leaf string) error {
	m, err := s.lib.LoadModel(leaf)
	if err != nil {
		return err
	}
	if m.Active {
		s.activateMu.Lock()
		if _, deErr := s.engine.SetModelActive(m, false); deErr != nil {
			s.activateMu.Unlock()
			return deErr
		}
		s.activateMu.Unlock()
	}
	if err := s.lib.DeleteModel(leaf); err != nil {
		return err
	}
	if err := s.db.DeleteModel(leaf); err != nil {
		return err
	}
	s.publish("deleted", leaf)
	return nil
}

// SetActive flips a model's active state through the engine, reindexes the
// result, and publishes an activated or deactivated event.
func (s *Service) SetActive(_ context.Context, leaf string, active bool) (*models.Model, error) {
	s.activateMu.Lock()
	defer s.activateMu.Unlock()

	m, err := s.lib.LoadModel(leaf)
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.SetModelActive(m, active); err != nil {
		return nil, err
	}
	updated, err := s.lib.LoadModel(leaf)
	if err != nil {
		return nil, err
	}
	if err := s.indexModel(updated); err != nil {
		return nil, err
	}
	if active {
		s.publish("activated", leaf)
	} else {
		s.publish("deactivated", leaf)
	}
	return updated, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

func (s *Service) indexModel(m *models.Model) error {
	return s.db.UpsertModel(index.ModelRow{
		Leaf:         m.FolderLeaf,
		Name:         m.Name,
		Checksum:     m.SidecarChecksum,
		Materials:    m.Materials,
		PrintTime:    m.PrintTime,
		PrintMinutes: m.PrintTimeMinutes,
		Active:       m.Active,
		LastModified: m.LastModified,
		TimeCreated:  m.TimeCreated,
	}, m.SearchBlob)
}
