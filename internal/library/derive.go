package library

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/starford/printdeck/internal/checksum"
	"github.com/starford/printdeck/internal/gcodemeta"
	"github.com/starford/printdeck/internal/models"
)

// extractorLineBudget caps how far into each G-code file the metadata
// extractor scans during a library load. Slicer headers sit in the first few
// hundred lines; full files can run to millions.
const extractorLineBudget = 600

var geometryExtensions = map[string]struct{}{
	".stl": {}, ".3mf": {}, ".obj": {}, ".step": {}, ".stp": {},
}

var (
	hoursRe    = regexp.MustCompile(`(?i)(\d+)\s*h`)
	minutesRe  = regexp.MustCompile(`(?i)(\d+)\s*m`)
	digitRunRe = regexp.MustCompile(`\d+`)
)

// loadModel builds a derived Model from one folder. The folder must exist.
func (l *Library) loadModel(folder string) (*models.Model, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("library: stat folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library: not a directory: %s", folder)
	}

	sc, raw := ReadSidecar(folder)
	leaf := filepath.Base(folder)

	m := &models.Model{
		Folder:           folder,
		FolderLeaf:       leaf,
		Sidecar:          sc,
		Active:           sc.Active,
		ActiveGcodeFiles: append([]string(nil), sc.ActiveGcodeFiles...),
	}

	m.Name = sc.Name
	if m.Name == "" {
		m.Name = leaf
	}

	m.ModelFiles = sc.ResolvedModelFiles()
	if len(m.ModelFiles) == 0 {
		m.ModelFiles = findGeometryFiles(folder)
	}

	m.Gcodes = enrichGcodeEntries(folder, sc.Gcodes)

	if sc.PreviewImage != "" {
		preview := filepath.Join(folder, sc.PreviewImage)
		if _, statErr := os.Stat(preview); statErr == nil {
			m.PreviewImage = preview
		}
	}

	m.Materials = deriveMaterials(m.Gcodes)
	m.PrintTime = derivePrintTimeText(m.Gcodes, sc.PrintTime)
	m.PrintTimeMinutes = ParsePrintTimeMinutes(m.PrintTime)
	m.LastModified = ParseTimestamp(sc.LastModified)
	m.TimeCreated = ParseTimestamp(sc.TimeCreated)
	m.SearchBlob = buildSearchBlob(m)
	if raw != nil {
		m.SidecarChecksum = checksum.Sum(raw)
	}

	return m, nil
}

// findGeometryFiles lists well-known geometry files directly in the folder,
// used when a sidecar lacks a model_files list.
func findGeometryFiles(folder string) []string {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := geometryExtensions[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			out = append(out, e.Name())
		}
	}
	return out
}

// enrichGcodeEntries fills blank material/colour/print-time fields on each
// sidecar entry, first from the G-code file's own comments, then from the
// filename convention.
func enrichGcodeEntries(folder string, entries []models.GcodeEntry) []models.GcodeEntry {
	out := make([]models.GcodeEntry, 0, len(entries))
	for _, entry := range entries {
		entry.File = strings.TrimSpace(entry.File)
		if entry.File == "" {
			continue
		}
		if entry.Material == "" || entry.Colour == "" || entry.PrintTime == "" {
			extracted := gcodemeta.Extract(filepath.Join(folder, entry.File), extractorLineBudget)
			if entry.Material == "" {
				entry.Material = extracted.Material
			}
			if entry.Colour == "" {
				entry.Colour = extracted.Colour
			}
			if entry.PrintTime == "" {
				entry.PrintTime = extracted.PrintTime
			}
		}
		if entry.Material == "" || entry.PrintTime == "" {
			fromName := gcodemeta.ParseFilename(entry.File)
			if entry.Material == "" {
				entry.Material = fromName.Material
			}
			if entry.Colour == "" {
				entry.Colour = fromName.Colour
			}
			if entry.PrintTime == "" {
				entry.PrintTime = fromName.PrintTime
			}
		}
		out = append(out, entry)
	}
	return out
}

// deriveMaterials returns the de-duplicated, sorted set of non-blank
// materials across G-code entries.
func deriveMaterials(entries []models.GcodeEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		material := strings.TrimSpace(e.Material)
		if material == "" {
			continue
		}
		if _, dup := seen[material]; dup {
			continue
		}
		seen[material] = struct{}{}
		out = append(out, material)
	}
	sort.Strings(out)
	return out
}

// derivePrintTimeText returns the first non-blank per-entry print time,
// falling back to the sidecar's top-level print_time.
func derivePrintTimeText(entries []models.GcodeEntry, topLevel string) string {
	for _, e := range entries {
		if pt := strings.TrimSpace(e.PrintTime); pt != "" {
			return pt
		}
	}
	return strings.TrimSpace(topLevel)
}

// ParsePrintTimeMinutes converts a display string like "2h 5m" to total
// minutes. Strings without unit tokens fall back to their first digit run;
// no digits at all yields models.UnknownMinutes.
func ParsePrintTimeMinutes(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.UnknownMinutes
	}
	total := 0
	matched := false
	for _, m := range hoursRe.FindAllStringSubmatch(text, -1) {
		if n, err := atoi(m[1]); err == nil {
			total += n * 60
			matched = true
		}
	}
	for _, m := range minutesRe.FindAllStringSubmatch(text, -1) {
		if n, err := atoi(m[1]); err == nil {
			total += n
			matched = true
		}
	}
	if matched {
		return total
	}
	if run := digitRunRe.FindString(text); run != "" {
		if n, err := atoi(run); err == nil {
			return n
		}
	}
	return models.UnknownMinutes
}

// ParseTimestamp parses sidecar timestamps: ISO-8601 with an optional
// trailing Z, plus space-separated fallbacks. Unparseable values yield the
// zero time, which sorts as "oldest possible" for recency sorts.
func ParseTimestamp(text string) time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	trimmed := strings.TrimSuffix(text, "Z")
	for _, layout := range layouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// buildSearchBlob concatenates the lowercased searchable fields: name,
// folder leaf, primary model file, print time, and every G-code entry's
// filename, material, and colour.
func buildSearchBlob(m *models.Model) string {
	parts := []string{m.Name, m.FolderLeaf}
	if len(m.ModelFiles) > 0 {
		parts = append(parts, m.ModelFiles[0])
	}
	if m.PrintTime != "" {
		parts = append(parts, m.PrintTime)
	}
	for _, g := range m.Gcodes {
		parts = append(parts, g.File, g.Material, g.Colour)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func atoi(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}
