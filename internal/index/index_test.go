package index

import (
	"os"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "printdeck-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM models`).Scan(&count); err != nil {
		t.Fatalf("models table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := ModelRow{
		Leaf:         "benchy",
		Name:         "Benchy Boat",
		Checksum:     "abc123",
		Materials:    []string{"PLA"},
		PrintTime:    "2h 5m",
		PrintMinutes: 125,
		LastModified: time.Now(),
	}
	if err := db.UpsertModel(row, "benchy boat pla red"); err != nil {
		t.Fatalf("UpsertModel: %v", err)
	}
	cs, err := db.GetChecksum("benchy")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}
}

func TestDeleteModel(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertModel(ModelRow{Leaf: "del", Checksum: "x"}, "body")

	if err := db.DeleteModel("del"); err != nil {
		t.Fatalf("DeleteModel: %v", err)
	}
	cs, _ := db.GetChecksum("del")
	if cs != "" {
		t.Errorf("deleted model still has checksum %q", cs)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertModel(ModelRow{Leaf: "up", Name: "Old", Checksum: "1", Materials: []string{"PLA"}, LastModified: now}, "old blob")
	_ = db.UpsertModel(ModelRow{Leaf: "up", Name: "New", Checksum: "2", Materials: []string{"PETG"}, LastModified: now}, "new blob")

	cs, _ := db.GetChecksum("up")
	if cs != "2" {
		t.Errorf("checksum = %q, want %q", cs, "2")
	}
	row, err := db.GetModel("up")
	if err != nil || row == nil {
		t.Fatalf("GetModel: %v, %v", row, err)
	}
	if row.Name != "New" || len(row.Materials) != 1 || row.Materials[0] != "PETG" {
		t.Errorf("row not updated: %+v", row)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestGetModel_NotFound(t *testing.T) {
	db := testDB(t)
	row, err := db.GetModel("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row != nil {
		t.Errorf("expected nil row, got %+v", row)
	}
}

func TestGetChecksum_ReportsDatabaseFailure(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertModel(ModelRow{Leaf: "benchy", Checksum: "abc"}, "")
	db.Close()

	if _, err := db.GetChecksum("benchy"); err == nil {
		t.Error("closed database must surface an error, not read as unindexed")
	}
	if _, err := db.GetModel("benchy"); err == nil {
		t.Error("closed database must surface an error, not read as unindexed")
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertModel(ModelRow{Leaf: "a", Checksum: "1"}, "")
	_ = db.UpsertModel(ModelRow{Leaf: "b", Checksum: "2"}, "")

	got, err := db.AllChecksums()
	if err != nil {
		t.Fatalf("AllChecksums: %v", err)
	}
	if len(got) != 2 || got["a"] != "1" || got["b"] != "2" {
		t.Errorf("checksums = %v", got)
	}
}

func TestListModels_MaterialFilterAndSort(t *testing.T) {
	db := testDB(t)
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = db.UpsertModel(ModelRow{Leaf: "a", Name: "Apple", Checksum: "1", Materials: []string{"PLA"}, PrintMinutes: 30, LastModified: t0}, "")
	_ = db.UpsertModel(ModelRow{Leaf: "b", Name: "Banana", Checksum: "2", Materials: []string{"PETG", "PLA"}, PrintMinutes: 10, LastModified: t0.Add(time.Hour)}, "")

	rows, total, err := db.ListModels(10, 0, "PETG", "")
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(rows) != 1 || rows[0].Leaf != "b" {
		t.Errorf("PETG filter = %+v", rows)
	}

	rows, _, err = db.ListModels(10, 0, "", "print_time")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[0].Leaf != "b" || rows[1].Leaf != "a" {
		t.Errorf("print_time sort order wrong: %+v", rows)
	}

	rows, _, _ = db.ListModels(10, 0, "", "")
	if len(rows) != 2 || rows[0].Leaf != "b" {
		t.Errorf("default sort should be newest first: %+v", rows)
	}
}

func TestListModels_MaterialFilterMatchesWholeValue(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertModel(ModelRow{Leaf: "pet", Checksum: "1", Materials: []string{"PET"}}, "")
	_ = db.UpsertModel(ModelRow{Leaf: "petg", Checksum: "2", Materials: []string{"PETG"}}, "")

	rows, _, err := db.ListModels(10, 0, "PET", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Leaf != "pet" {
		t.Errorf("PET filter should not match PETG: %+v", rows)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertModel(ModelRow{Leaf: "s", Name: "Search Me", Checksum: "1"}, "uniqueword appears here")

	results, err := db.Search("uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Leaf != "s" {
		t.Errorf("search results = %+v, want 1 hit for s", results)
	}
}
