// Package gallery holds the pure query pipeline applied to a scanned model
// list: text search, material filter, and gallery sorts.
package gallery

import (
	"sort"
	"strings"

	"github.com/starford/printdeck/internal/models"
)

// AllMaterials is the material-filter sentinel that disables filtering.
const AllMaterials = "All Materials"

// SortKey names one of the supported gallery orderings.
type SortKey string

const (
	SortLastModified SortKey = "last_modified" // newest first
	SortTimeCreated  SortKey = "time_created"  // newest first
	SortNameAsc      SortKey = "name_asc"
	SortNameDesc     SortKey = "name_desc"
	SortPrintTime    SortKey = "print_time" // shortest first, unknown last
)

// DefaultSort is applied when a request names no ordering.
const DefaultSort = SortLastModified

// ParseSortKey maps a request parameter to a SortKey, falling back to
// DefaultSort for unknown or empty values.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.TrimSpace(strings.ToLower(s))) {
	case SortLastModified, SortTimeCreated, SortNameAsc, SortNameDesc, SortPrintTime:
		return SortKey(strings.TrimSpace(strings.ToLower(s)))
	default:
		return DefaultSort
	}
}

// Search keeps models whose name or search blob contains the term,
// case-insensitively. An empty term keeps everything.
func Search(in []*models.Model, term string) []*models.Model {
	term = strings.TrimSpace(term)
	if term == "" {
		return in
	}
	out := make([]*models.Model, 0, len(in))
	for _, m := range in {
		if m.MatchesSearch(term) {
			out = append(out, m)
		}
	}
	return out
}

// FilterMaterial keeps models offering the given material. The AllMaterials
// sentinel and the empty string keep everything.
func FilterMaterial(in []*models.Model, material string) []*models.Model {
	material = strings.TrimSpace(material)
	if material == "" || material == AllMaterials {
		return in
	}
	out := make([]*models.Model, 0, len(in))
	for _, m := range in {
		if m.HasMaterial(material) {
			out = append(out, m)
		}
	}
	return out
}

// Materials returns the union of materials across models, sorted, for
// building a filter dropdown.
func Materials(in []*models.Model) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range in {
		for _, material := range m.Materials {
			if _, dup := seen[material]; dup {
				continue
			}
			seen[material] = struct{}{}
			out = append(out, material)
		}
	}
	sort.Strings(out)
	return out
}

// Sort orders models in place by the given key. The sort is stable, so
// models equal under the key keep their incoming (folder-leaf) order.
func Sort(in []*models.Model, key SortKey) {
	var less func(a, b *models.Model) bool
	switch key {
	case SortTimeCreated:
		less = func(a, b *models.Model) bool { return a.TimeCreated.After(b.TimeCreated) }
	case SortNameAsc:
		less = func(a, b *models.Model) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortNameDesc:
		less = func(a, b *models.Model) bool {
			return strings.ToLower(a.Name) > strings.ToLower(b.Name)
		}
	case SortPrintTime:
		less = func(a, b *models.Model) bool { return a.PrintTimeMinutes < b.PrintTimeMinutes }
	default:
		less = func(a, b *models.Model) bool { return a.LastModified.After(b.LastModified) }
	}
	sort.SliceStable(in, func(i, j int) bool { return less(in[i], in[j]) })
}

// Query applies search, material filter, and sort in that order, returning a
// new slice. The input slice is never reordered.
func Query(in []*models.Model, term, material string, key SortKey) []*models.Model {
	out := make([]*models.Model, len(in))
	copy(out, in)
	filtered := FilterMaterial(Search(out, term), material)
	Sort(filtered, key)
	return filtered
}
