package gallery

import (
	"testing"
	"time"

	"github.com/starford/printdeck/internal/models"
)

func mk(leaf, name string, materials []string, minutes int, modified time.Time) *models.Model {
	return &models.Model{
		Name:             name,
		FolderLeaf:       leaf,
		Materials:        materials,
		PrintTimeMinutes: minutes,
		LastModified:     modified,
		TimeCreated:      modified,
		SearchBlob:       leaf + " " + name,
	}
}

func leaves(in []*models.Model) []string {
	out := make([]string, len(in))
	for i, m := range in {
		out[i] = m.FolderLeaf
	}
	return out
}

func TestSearch(t *testing.T) {
	in := []*models.Model{
		mk("benchy", "Benchy Boat", nil, 0, time.Time{}),
		mk("vase", "Spiral Vase", nil, 0, time.Time{}),
	}
	got := Search(in, "BENCH")
	if len(got) != 1 || got[0].FolderLeaf != "benchy" {
		t.Errorf("search = %v", leaves(got))
	}
	if got := Search(in, ""); len(got) != 2 {
		t.Errorf("empty term should keep everything, got %d", len(got))
	}
	if got := Search(in, "xyzzy"); len(got) != 0 {
		t.Errorf("no-match term should yield empty, got %v", leaves(got))
	}
}

func TestFilterMaterial(t *testing.T) {
	in := []*models.Model{
		mk("a", "A", []string{"PLA"}, 0, time.Time{}),
		mk("b", "B", []string{"PETG", "PLA"}, 0, time.Time{}),
		mk("c", "C", nil, 0, time.Time{}),
	}
	if got := FilterMaterial(in, "PETG"); len(got) != 1 || got[0].FolderLeaf != "b" {
		t.Errorf("PETG filter = %v", leaves(got))
	}
	if got := FilterMaterial(in, AllMaterials); len(got) != 3 {
		t.Errorf("sentinel should keep everything, got %d", len(got))
	}
	if got := FilterMaterial(in, ""); len(got) != 3 {
		t.Errorf("empty material should keep everything, got %d", len(got))
	}
}

func TestMaterials(t *testing.T) {
	in := []*models.Model{
		mk("a", "A", []string{"PLA", "ABS"}, 0, time.Time{}),
		mk("b", "B", []string{"PLA"}, 0, time.Time{}),
	}
	got := Materials(in)
	want := []string{"ABS", "PLA"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("materials = %v, want %v", got, want)
	}
}

func TestSort_Keys(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := t0.Add(48 * time.Hour)
	in := func() []*models.Model {
		return []*models.Model{
			mk("a", "zebra", nil, 120, t0),
			mk("b", "Apple", nil, 30, newer),
			mk("c", "mango", nil, models.UnknownMinutes, t0.Add(24*time.Hour)),
		}
	}

	cases := []struct {
		key  SortKey
		want []string
	}{
		{SortLastModified, []string{"b", "c", "a"}},
		{SortTimeCreated, []string{"b", "c", "a"}},
		{SortNameAsc, []string{"b", "c", "a"}},
		{SortNameDesc, []string{"a", "c", "b"}},
		{SortPrintTime, []string{"b", "a", "c"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.key), func(t *testing.T) {
			list := in()
			Sort(list, tc.key)
			got := leaves(list)
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("order = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestSort_UnknownPrintTimeLast(t *testing.T) {
	list := []*models.Model{
		mk("u", "U", nil, models.UnknownMinutes, time.Time{}),
		mk("k", "K", nil, 5, time.Time{}),
	}
	Sort(list, SortPrintTime)
	if list[1].FolderLeaf != "u" {
		t.Errorf("unknown print time should sort last, got %v", leaves(list))
	}
}

func TestSort_StableForEqualKeys(t *testing.T) {
	same := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	list := []*models.Model{
		mk("alpha", "Same", nil, 10, same),
		mk("beta", "Same", nil, 10, same),
		mk("gamma", "Same", nil, 10, same),
	}
	for _, key := range []SortKey{SortLastModified, SortTimeCreated, SortNameAsc, SortNameDesc, SortPrintTime} {
		Sort(list, key)
		got := leaves(list)
		want := []string{"alpha", "beta", "gamma"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: equal keys reordered: %v", key, got)
			}
		}
	}
}

func TestParseSortKey(t *testing.T) {
	if got := ParseSortKey("name_asc"); got != SortNameAsc {
		t.Errorf("got %q", got)
	}
	if got := ParseSortKey(" Print_Time "); got != SortPrintTime {
		t.Errorf("got %q", got)
	}
	if got := ParseSortKey("bogus"); got != DefaultSort {
		t.Errorf("unknown key should fall back to default, got %q", got)
	}
	if got := ParseSortKey(""); got != DefaultSort {
		t.Errorf("empty key should fall back to default, got %q", got)
	}
}

func TestQuery_DoesNotReorderInput(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []*models.Model{
		mk("a", "A", nil, 0, t0),
		mk("b", "B", nil, 0, t0.Add(time.Hour)),
	}
	_ = Query(in, "", "", SortLastModified)
	if in[0].FolderLeaf != "a" || in[1].FolderLeaf != "b" {
		t.Errorf("input slice reordered: %v", leaves(in))
	}
}
