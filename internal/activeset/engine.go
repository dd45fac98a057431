// Package activeset copies a model's G-code files into the shared active
// root and keeps the sidecar's active state in step with what is on disk.
package activeset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/printdeck/internal/library"
	"github.com/starford/printdeck/internal/models"
)

// ActiveModelError wraps any failure of an active-state transition so
// callers can distinguish it from ordinary library errors.
type ActiveModelError struct {
	msg string
	err error
}

func (e *ActiveModelError) Error() string { return e.msg }
func (e *ActiveModelError) Unwrap() error { return e.err }

func activeErr(err error, format string, args ...any) *ActiveModelError {
	return &ActiveModelError{msg: fmt.Sprintf(format, args...), err: err}
}

// Result is the outcome of a successful transition: the active-root file
// names now owned by the model, the rewritten sidecar, and the timestamp
// written into it.
type Result struct {
	ActiveFiles []string
	Sidecar     models.Sidecar
	Timestamp   time.Time
}

// Engine performs active-state transitions against one active root.
type Engine struct {
	activeRoot string
}

// New creates an Engine copying into the given active root.
func New(activeRoot string) (*Engine, error) {
	if strings.TrimSpace(activeRoot) == "" {
		return nil, activeErr(nil, "active root path is empty")
	}
	abs, err := filepath.Abs(activeRoot)
	if err != nil {
		return nil, activeErr(err, "resolve active root: %v", err)
	}
	return &Engine{activeRoot: abs}, nil
}

// Root returns the absolute active-root path.
func (e *Engine) Root() string { return e.activeRoot }

// SetModelActive flips a model's active state. Activation copies every
// listed G-code file into the active root, renaming on collision;
// deactivation removes the model's recorded copies best-effort. Either way
// the sidecar is rewritten with the new state and a fresh last_modified.
//
// If the sidecar write fails after files were copied, the copies stay in the
// active root. The sidecar is the source of truth, so the recorded state
// remains the old one; a later activation converges via the equal-file
// short-circuit.
func (e *Engine) SetModelActive(m *models.Model, active bool) (*Result, error) {
	if m == nil {
		return nil, activeErr(nil, "model is nil")
	}

	var activeFiles []string
	if active {
		names, err := e.copyGcodesToRoot(m)
		if err != nil {
			return nil, err
		}
		activeFiles = names
	} else {
		e.removeActiveGcodes(m)
	}

	sc, ts, err := writeActiveSidecar(m, active, activeFiles)
	if err != nil {
		return nil, err
	}
	return &Result{ActiveFiles: activeFiles, Sidecar: sc, Timestamp: ts}, nil
}

// copyGcodesToRoot copies the model's G-code files into the active root and
// returns the destination names. Partial copies are rolled back on failure.
func (e *Engine) copyGcodesToRoot(m *models.Model) ([]string, error) {
	folder := m.Folder
	if info, err := os.Stat(folder); err != nil || !info.IsDir() {
		return nil, activeErr(err, "model folder could not be found on disk")
	}
	if len(m.Gcodes) == 0 {
		return nil, activeErr(nil, "this model does not list any G-code entries")
	}
	if err := os.MkdirAll(e.activeRoot, 0o755); err != nil {
		return nil, activeErr(err, "create active root: %v", err)
	}

	folderLeaf := filepath.Base(strings.TrimRight(folder, string(filepath.Separator)))
	if folderLeaf == "" || folderLeaf == "." {
		folderLeaf = "model"
	}

	usedDest := make(map[string]bool)
	for _, name := range existingActiveNames(m) {
		usedDest[strings.ToLower(name)] = true
	}

	var resultNames []string
	var copiedPaths []string
	var missingSources []string
	seen := make(map[string]bool)

	record := func(name string) {
		usedDest[strings.ToLower(name)] = true
		if !seen[name] {
			seen[name] = true
			resultNames = append(resultNames, name)
		}
	}

	rollback := func() {
		for _, path := range copiedPaths {
			_ = os.Remove(path)
		}
	}

	for _, entry := range m.Gcodes {
		fileName := strings.TrimSpace(entry.File)
		if fileName == "" {
			continue
		}

		source := filepath.Join(folder, fileName)
		if info, err := os.Stat(source); err != nil || info.IsDir() {
			missingSources = append(missingSources, fileName)
			continue
		}

		destName := fileName
		destPath := filepath.Join(e.activeRoot, destName)

		if pathExists(destPath) {
			if filesAreSame(source, destPath) {
				record(destName)
				continue
			}
			// A different file already holds this name. Suffix the
			// source folder's leaf onto the stem until a free or
			// equal-content name turns up.
			stem, ext := splitExt(fileName)
			for suffix := 0; ; suffix++ {
				extra := ""
				if suffix > 0 {
					extra = fmt.Sprintf("_%d", suffix)
				}
				candidate := stem + "__" + folderLeaf + extra + ext
				candidatePath := filepath.Join(e.activeRoot, candidate)
				if !pathExists(candidatePath) || filesAreSame(source, candidatePath) {
					destName = candidate
					destPath = candidatePath
					break
				}
			}
		}

		// The chosen name may still clash with one this activation (or a
		// previous one) already claimed. Disambiguate with a numeric
		// suffix until the name is unclaimed and the slot is free or
		// holds equal content.
		if usedDest[strings.ToLower(destName)] && !filesAreSame(source, filepath.Join(e.activeRoot, destName)) {
			stem, ext := splitExt(destName)
			for suffix := 1; ; suffix++ {
				candidate := fmt.Sprintf("%s_%d%s", stem, suffix, ext)
				candidatePath := filepath.Join(e.activeRoot, candidate)
				if !usedDest[strings.ToLower(candidate)] &&
					(!pathExists(candidatePath) || filesAreSame(source, candidatePath)) {
					destName = candidate
					destPath = candidatePath
					break
				}
			}
		}

		if err := copyPreservingTimes(source, destPath); err != nil {
			rollback()
			return nil, activeErr(err, "failed to copy G-code file %q: %v", fileName, err)
		}
		copiedPaths = append(copiedPaths, destPath)
		record(destName)
	}

	if len(resultNames) == 0 {
		if len(missingSources) > 0 {
			sort.Strings(missingSources)
			return nil, activeErr(nil, "no G-code files were copied, missing sources: %s",
				strings.Join(dedupe(missingSources), ", "))
		}
		return nil, activeErr(nil, "no G-code files were copied for this model")
	}
	return resultNames, nil
}

// removeActiveGcodes deletes the model's recorded active-root copies.
// Deletion is best-effort; a file someone else removed is not an error.
func (e *Engine) removeActiveGcodes(m *models.Model) {
	for _, name := range existingActiveNames(m) {
		target := filepath.Join(e.activeRoot, name)
		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			_ = os.Remove(target)
		}
	}
}

// existingActiveNames merges the model's top-level and sidecar-recorded
// active file lists, de-duplicated case-insensitively in first-seen order.
func existingActiveNames(m *models.Model) []string {
	recorded := append(append([]string(nil), m.ActiveGcodeFiles...), m.Sidecar.ActiveGcodeFiles...)
	seen := make(map[string]bool)
	var out []string
	for _, name := range recorded {
		if name == "" {
			continue
		}
		lowered := strings.ToLower(name)
		if seen[lowered] {
			continue
		}
		seen[lowered] = true
		out = append(out, name)
	}
	return out
}

// writeActiveSidecar rewrites the model's sidecar with the new active state
// and a fresh last_modified timestamp.
func writeActiveSidecar(m *models.Model, active bool, activeFiles []string) (models.Sidecar, time.Time, error) {
	if strings.TrimSpace(m.Folder) == "" {
		return models.Sidecar{}, time.Time{}, activeErr(nil, "model folder path is not recorded")
	}

	sc := m.Sidecar
	sc.Active = active
	sc.ActiveGcodeFiles = append([]string(nil), activeFiles...)

	// A folder with a missing or malformed sidecar still derives a usable
	// Model; backfill the derived fields so the rewrite passes validation.
	if sc.Name == "" {
		sc.Name = m.Name
	}
	if len(sc.ResolvedModelFiles()) == 0 {
		sc.ModelFiles = append([]string(nil), m.ModelFiles...)
	}
	if len(sc.Gcodes) == 0 {
		sc.Gcodes = append([]models.GcodeEntry(nil), m.Gcodes...)
	}

	ts := time.Now().UTC().Truncate(time.Second)
	sc.LastModified = ts.Format(library.TimestampFormat)

	lib, err := library.New(filepath.Dir(m.Folder))
	if err != nil {
		return models.Sidecar{}, time.Time{}, activeErr(err, "unable to write model metadata: %v", err)
	}
	if err := lib.WriteSidecar(filepath.Base(m.Folder), &sc); err != nil {
		return models.Sidecar{}, time.Time{}, activeErr(err, "unable to write model metadata: %v", err)
	}
	return sc, ts, nil
}

func splitExt(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// filesAreSame reports whether two paths refer to the same content: the
// same inode, or equal size and whole-second mtime (the copy preserves the
// source's mtime, so a prior copy of the same file compares equal).
func filesAreSame(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	if errA != nil || errB != nil {
		return false
	}
	if os.SameFile(infoA, infoB) {
		return true
	}
	return infoA.Size() == infoB.Size() && infoA.ModTime().Unix() == infoB.ModTime().Unix()
}

// copyPreservingTimes copies src to dst and carries over the source's
// modification time so equal-file detection works across activations.
func copyPreservingTimes(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func dedupe(in []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
