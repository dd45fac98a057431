package activeset

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/starford/printdeck/internal/library"
	"github.com/starford/printdeck/internal/models"
)

type fixture struct {
	lib    *library.Library
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lib, err := library.New(filepath.Join(t.TempDir(), "models"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(lib.Root(), 0o755); err != nil {
		t.Fatal(err)
	}
	engine, err := New(filepath.Join(filepath.Dir(lib.Root()), "active"))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{lib: lib, engine: engine}
}

// addModel creates a model folder with the given G-code files (name to
// content) and a valid sidecar, then loads it.
func (f *fixture) addModel(t *testing.T, leaf string, gcodes map[string]string) *models.Model {
	t.Helper()
	folder := filepath.Join(f.lib.Root(), leaf)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "part.stl"), []byte("solid"), 0o644); err != nil {
		t.Fatal(err)
	}
	sc := models.Sidecar{Name: leaf, ModelFiles: []string{"part.stl"}}
	var names []string
	for name := range gcodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(folder, name), []byte(gcodes[name]), 0o644); err != nil {
			t.Fatal(err)
		}
		sc.Gcodes = append(sc.Gcodes, models.GcodeEntry{File: name})
	}
	if err := f.lib.WriteSidecar(leaf, &sc); err != nil {
		t.Fatal(err)
	}
	m, err := f.lib.LoadModel(leaf)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func (f *fixture) activeRootNames(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.engine.Root())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func TestSetModelActive_CopiesAndRecords(t *testing.T) {
	f := newFixture(t)
	m := f.addModel(t, "benchy", map[string]string{"benchy.gcode": "G1 X0"})

	res, err := f.engine.SetModelActive(m, true)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if len(res.ActiveFiles) != 1 || res.ActiveFiles[0] != "benchy.gcode" {
		t.Errorf("active files = %v", res.ActiveFiles)
	}
	if got := f.activeRootNames(t); len(got) != 1 || got[0] != "benchy.gcode" {
		t.Errorf("active root = %v", got)
	}
	if !res.Sidecar.Active {
		t.Error("sidecar should record active=true")
	}
	if res.Sidecar.LastModified == "" {
		t.Error("sidecar should carry a fresh last_modified")
	}

	reloaded, err := f.lib.LoadModel("benchy")
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.Active || len(reloaded.ActiveGcodeFiles) != 1 {
		t.Errorf("persisted state = active=%v files=%v", reloaded.Active, reloaded.ActiveGcodeFiles)
	}
}

func TestSetModelActive_Idempotent(t *testing.T) {
	f := newFixture(t)
	m := f.addModel(t, "benchy", map[string]string{"benchy.gcode": "G1 X0"})

	if _, err := f.engine.SetModelActive(m, true); err != nil {
		t.Fatal(err)
	}
	m, err := f.lib.LoadModel("benchy")
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.engine.SetModelActive(m, true)
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}
	if len(res.ActiveFiles) != 1 || res.ActiveFiles[0] != "benchy.gcode" {
		t.Errorf("active files after re-activate = %v", res.ActiveFiles)
	}
	if got := f.activeRootNames(t); len(got) != 1 {
		t.Errorf("re-activation must not duplicate files, active root = %v", got)
	}
}

func TestSetModelActive_CollisionRenamesWithFolderLeaf(t *testing.T) {
	f := newFixture(t)
	a := f.addModel(t, "alpha", map[string]string{"part.gcode": "content A"})
	b := f.addModel(t, "beta", map[string]string{"part.gcode": "longer content B"})

	if _, err := f.engine.SetModelActive(a, true); err != nil {
		t.Fatal(err)
	}
	res, err := f.engine.SetModelActive(b, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ActiveFiles) != 1 || res.ActiveFiles[0] != "part__beta.gcode" {
		t.Errorf("active files = %v, want collision-renamed part__beta.gcode", res.ActiveFiles)
	}
	want := []string{"part.gcode", "part__beta.gcode"}
	got := f.activeRootNames(t)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("active root = %v, want %v", got, want)
	}
}

func TestSetModelActive_EqualContentReusesName(t *testing.T) {
	f := newFixture(t)
	a := f.addModel(t, "alpha", map[string]string{"part.gcode": "same"})
	b := f.addModel(t, "beta", map[string]string{"part.gcode": "same"})

	// Give both sources identical size and mtime so they compare equal.
	mtime := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	for _, m := range []*models.Model{a, b} {
		if err := os.Chtimes(filepath.Join(m.Folder, "part.gcode"), mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := f.engine.SetModelActive(a, true); err != nil {
		t.Fatal(err)
	}
	res, err := f.engine.SetModelActive(b, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.ActiveFiles) != 1 || res.ActiveFiles[0] != "part.gcode" {
		t.Errorf("equal content should reuse the name, got %v", res.ActiveFiles)
	}
	if got := f.activeRootNames(t); len(got) != 1 {
		t.Errorf("active root = %v, want single shared copy", got)
	}
}

func TestSetModelActive_Deactivate(t *testing.T) {
	f := newFixture(t)
	m := f.addModel(t, "benchy", map[string]string{"benchy.gcode": "G1"})

	if _, err := f.engine.SetModelActive(m, true); err != nil {
		t.Fatal(err)
	}
	m, err := f.lib.LoadModel("benchy")
	if err != nil {
		t.Fatal(err)
	}
	res, err := f.engine.SetModelActive(m, false)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if len(res.ActiveFiles) != 0 {
		t.Errorf("active files after deactivate = %v", res.ActiveFiles)
	}
	if res.Sidecar.Active {
		t.Error("sidecar should record active=false")
	}
	if got := f.activeRootNames(t); len(got) != 0 {
		t.Errorf("active root should be empty, got %v", got)
	}
}

func TestSetModelActive_DeactivateToleratesMissingCopies(t *testing.T) {
	f := newFixture(t)
	m := f.addModel(t, "benchy", map[string]string{"benchy.gcode": "G1"})

	if _, err := f.engine.SetModelActive(m, true); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(f.engine.Root(), "benchy.gcode")); err != nil {
		t.Fatal(err)
	}
	m, err := f.lib.LoadModel("benchy")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.engine.SetModelActive(m, false); err != nil {
		t.Errorf("deactivation should tolerate already-removed copies: %v", err)
	}
}

func TestSetModelActive_MissingSourcesFail(t *testing.T) {
	f := newFixture(t)
	m := f.addModel(t, "benchy", map[string]string{"benchy.gcode": "G1"})
	if err := os.Remove(filepath.Join(m.Folder, "benchy.gcode")); err != nil {
		t.Fatal(err)
	}

	_, err := f.engine.SetModelActive(m, true)
	if err == nil {
		t.Fatal("expected error when every source is missing")
	}
	if !strings.Contains(err.Error(), "benchy.gcode") {
		t.Errorf("error should name the missing source: %v", err)
	}
	var amErr *ActiveModelError
	if !errors.As(err, &amErr) {
		t.Errorf("error should be an ActiveModelError, got %T", err)
	}
	if got := f.activeRootNames(t); len(got) != 0 {
		t.Errorf("nothing should be copied, active root = %v", got)
	}
}

func TestSetModelActive_PartialMissingSourcesSkipped(t *testing.T) {
	f := newFixture(t)
	m := f.addModel(t, "benchy", map[string]string{
		"a.gcode": "G1",
		"b.gcode": "G2",
	})
	if err := os.Remove(filepath.Join(m.Folder, "a.gcode")); err != nil {
		t.Fatal(err)
	}

	res, err := f.engine.SetModelActive(m, true)
	if err != nil {
		t.Fatalf("activation with one missing source should still succeed: %v", err)
	}
	if len(res.ActiveFiles) != 1 || res.ActiveFiles[0] != "b.gcode" {
		t.Errorf("active files = %v, want just b.gcode", res.ActiveFiles)
	}
}

func TestSetModelActive_CopyFailureRollsBackThisRun(t *testing.T) {
	f := newFixture(t)
	m := f.addModel(t, "benchy", map[string]string{
		"a.gcode": "G1",
		"b.gcode": "G2",
		"c.gcode": "G3",
	})

	// Make the second copy fail: a self-referential symlink at the
	// destination name errors on open without looking like an existing file.
	if err := os.MkdirAll(f.engine.Root(), 0o755); err != nil {
		t.Fatal(err)
	}
	loop := filepath.Join(f.engine.Root(), "b.gcode")
	if err := os.Symlink(loop, loop); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := f.engine.SetModelActive(m, true)
	if err == nil {
		t.Fatal("expected error when a copy fails mid-run")
	}
	var amErr *ActiveModelError
	if !errors.As(err, &amErr) {
		t.Errorf("error should be an ActiveModelError, got %T", err)
	}
	if !strings.Contains(err.Error(), "b.gcode") {
		t.Errorf("error should name the failing file: %v", err)
	}

	// a.gcode was copied before the failure; the rollback must remove it and
	// c.gcode must never be copied. Only the planted symlink remains.
	if got := f.activeRootNames(t); len(got) != 1 || got[0] != "b.gcode" {
		t.Errorf("active root = %v, want only the pre-existing b.gcode entry", got)
	}

	reloaded, loadErr := f.lib.LoadModel("benchy")
	if loadErr != nil {
		t.Fatal(loadErr)
	}
	if reloaded.Active || len(reloaded.ActiveGcodeFiles) != 0 {
		t.Errorf("sidecar must be untouched, got active=%v files=%v",
			reloaded.Active, reloaded.ActiveGcodeFiles)
	}
}

func TestSetModelActive_NoGcodeEntries(t *testing.T) {
	f := newFixture(t)
	m := f.addModel(t, "empty", nil)

	if _, err := f.engine.SetModelActive(m, true); err == nil {
		t.Error("expected error for a model without G-code entries")
	}
}
