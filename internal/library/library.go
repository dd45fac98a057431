// Package library scans a models-root directory of model folders and loads
// each folder's model.json sidecar into a derived, query-ready Model.
package library

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/starford/printdeck/internal/apperr"
	"github.com/starford/printdeck/internal/models"
)

// SidecarName is the metadata file kept alongside a model's assets.
const SidecarName = "model.json"

// scanParallelism bounds concurrent folder loads during a full scan.
const scanParallelism = 8

// Library provides access to model folders under a single models root.
type Library struct {
	root string // absolute path to the models root
}

// New creates a Library rooted at the given directory. The directory does
// not have to exist yet; a missing root scans to an empty library.
func New(root string) (*Library, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("library: models root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("library: resolve root: %w", err)
	}
	return &Library{root: abs}, nil
}

// Root returns the absolute models-root path.
func (l *Library) Root() string {
	return l.root
}

// safeLeaf validates that leaf is a plain folder name (no separators, no
// traversal) and returns the absolute model folder path.
func (l *Library) safeLeaf(leaf string) (string, error) {
	if leaf == "" {
		return "", fmt.Errorf("library: model folder name is required")
	}
	cleaned := filepath.Clean(leaf)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("library: invalid model folder name: %s", leaf)
	}
	return filepath.Join(l.root, cleaned), nil
}

// Scan walks the immediate subdirectories of the models root and returns a
// Model per readable folder, sorted by folder leaf for a stable scan order.
// A missing root yields an empty slice; a single folder's failure skips that
// folder and never aborts the batch.
func (l *Library) Scan(ctx context.Context) ([]*models.Model, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("library: read root: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanParallelism)

	var mu sync.Mutex
	var out []*models.Model

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		leaf := entry.Name()
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m, loadErr := l.loadModel(filepath.Join(l.root, leaf))
			if loadErr != nil {
				// Unreadable folder: skip it, keep scanning the rest.
				return nil
			}
			mu.Lock()
			out = append(out, m)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FolderLeaf < out[j].FolderLeaf
	})
	return out, nil
}

// LoadModel loads a single model folder by its leaf name.
func (l *Library) LoadModel(leaf string) (*models.Model, error) {
	folder, err := l.safeLeaf(leaf)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return nil, apperr.ErrNotFound
	}
	return l.loadModel(folder)
}

// ReadSidecar reads and decodes a folder's model.json. A missing or
// malformed sidecar degrades to an empty Sidecar, never an error; the
// returned raw bytes are nil in that case.
func ReadSidecar(folder string) (models.Sidecar, []byte) {
	var sc models.Sidecar
	raw, err := os.ReadFile(filepath.Join(folder, SidecarName))
	if err != nil {
		return sc, nil
	}
	if err := json.Unmarshal(raw, &sc); err != nil {
		return models.Sidecar{}, nil
	}
	return sc, raw
}

// ValidateSidecar rejects sidecars that would leave a model without a name
// or without any geometry file.
func ValidateSidecar(sc *models.Sidecar) error {
	if err := validation.ValidateStruct(sc,
		validation.Field(&sc.Name, validation.Required),
	); err != nil {
		return err
	}
	if len(sc.ResolvedModelFiles()) == 0 {
		return fmt.Errorf("library: model_files must not be empty")
	}
	return nil
}

// WriteSidecar validates and atomically writes a model folder's sidecar:
// tmp file, fsync, rename. The folder must exist.
func (l *Library) WriteSidecar(leaf string, sc *models.Sidecar) error {
	folder, err := l.safeLeaf(leaf)
	if err != nil {
		return err
	}
	if info, statErr := os.Stat(folder); statErr != nil || !info.IsDir() {
		return fmt.Errorf("library: model folder not found: %s", leaf)
	}
	if err := ValidateSidecar(sc); err != nil {
		return err
	}
	return writeSidecarFile(folder, sc)
}

func writeSidecarFile(folder string, sc *models.Sidecar) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("library: encode sidecar: %w", err)
	}

	tmp, err := os.CreateTemp(folder, ".printdeck-tmp-*")
	if err != nil {
		return fmt.Errorf("library: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("library: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("library: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("library: close temp: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(folder, SidecarName)); err != nil {
		return fmt.Errorf("library: rename: %w", err)
	}
	success = true
	return nil
}

// DeleteModel removes a model folder and everything in it.
func (l *Library) DeleteModel(leaf string) error {
	folder, err := l.safeLeaf(leaf)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(folder); statErr != nil {
		return apperr.ErrNotFound
	}
	if err := os.RemoveAll(folder); err != nil {
		return fmt.Errorf("library: delete %s: %w", leaf, err)
	}
	return nil
}
