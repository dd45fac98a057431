package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSync_IndexesAndRemovesStale(t *testing.T) {
	lib, db := watcherTestEnv(t)
	writeModelFolder(t, lib, "keep", "Keeper")
	writeModelFolder(t, lib, "gone", "Goner")

	if err := Sync(context.Background(), db, lib, quietLogger()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(checksums) != 2 {
		t.Fatalf("expected 2 indexed models, got %d", len(checksums))
	}

	if err := os.RemoveAll(filepath.Join(lib.Root(), "gone")); err != nil {
		t.Fatal(err)
	}
	if err := Sync(context.Background(), db, lib, quietLogger()); err != nil {
		t.Fatal(err)
	}
	checksums, _ = db.AllChecksums()
	if len(checksums) != 1 {
		t.Errorf("stale entry not removed, checksums = %v", checksums)
	}
	if _, ok := checksums["keep"]; !ok {
		t.Error("surviving model missing from index")
	}
}

func TestSync_SkipsUnchanged(t *testing.T) {
	lib, db := watcherTestEnv(t)
	writeModelFolder(t, lib, "same", "Same")

	if err := Sync(context.Background(), db, lib, quietLogger()); err != nil {
		t.Fatal(err)
	}
	before, _ := db.GetChecksum("same")
	if before == "" {
		t.Fatal("model not indexed")
	}

	if err := Sync(context.Background(), db, lib, quietLogger()); err != nil {
		t.Fatal(err)
	}
	after, _ := db.GetChecksum("same")
	if after != before {
		t.Errorf("checksum changed across no-op syncs: %q != %q", after, before)
	}
}

func TestSync_PicksUpSidecarChange(t *testing.T) {
	lib, db := watcherTestEnv(t)
	writeModelFolder(t, lib, "evolve", "First")
	if err := Sync(context.Background(), db, lib, quietLogger()); err != nil {
		t.Fatal(err)
	}

	writeModelFolder(t, lib, "evolve", "Second")
	if err := Sync(context.Background(), db, lib, quietLogger()); err != nil {
		t.Fatal(err)
	}
	row, err := db.GetModel("evolve")
	if err != nil || row == nil {
		t.Fatalf("GetModel: %v, %v", row, err)
	}
	if row.Name != "Second" {
		t.Errorf("name = %q, want %q", row.Name, "Second")
	}
}
