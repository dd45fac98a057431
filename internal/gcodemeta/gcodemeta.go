// Package gcodemeta extracts material, colour, and print-time metadata from
// slicer-authored G-code comment lines.
package gcodemeta

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Material patterns in priority order; the first match wins.
	materialRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)filament_settings_id\s*=\s*"?([^";]+)"?`),
		regexp.MustCompile(`(?i)filament_spool_name\s*=\s*"?([^";]+)"?`),
		regexp.MustCompile(`(?i)filament_brand\s*=\s*"?([^";]+)"?`),
		regexp.MustCompile(`(?i)filament_type\s*=\s*"?([^";]+)"?`),
	}
	colourRe    = regexp.MustCompile(`(?i)filament_colou?r\s*=\s*"?([^";]+)"?`)
	prusaTimeRe = regexp.MustCompile(`(?i)estimated printing time.*=\s*([0-9hms ]+)`)
	unitTokenRe = regexp.MustCompile(`(?i)(\d+)\s*([hms])`)
	hexColourRe = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)
)

// polymerAbbreviations is the exclusion set for the colour-name fallback:
// a trailing material token matching one of these is never treated as a colour.
var polymerAbbreviations = map[string]struct{}{
	"PLA": {}, "ABS": {}, "PETG": {}, "ASA": {}, "TPU": {}, "PVA": {},
	"HIPS": {}, "NYLON": {}, "PET": {}, "PC": {}, "PEI": {}, "PETT": {},
}

// Metadata holds whatever the scan recovered; any field may be empty.
type Metadata struct {
	Material  string
	Colour    string
	PrintTime string
}

// Extract streams the G-code file at path and returns recovered metadata.
// A non-existent or unreadable path yields an empty result, never an error.
// If maxLines is positive, scanning stops once the limit is reached;
// otherwise the file is streamed until both material and print time are
// found or EOF. A read failure mid-scan returns whatever was accumulated.
func Extract(path string, maxLines int) Metadata {
	var result Metadata
	if path == "" {
		return result
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return result
	}
	f, err := os.Open(path)
	if err != nil {
		return result
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		if maxLines > 0 && lineNumber > maxLines {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, ";") {
			continue
		}
		body := strings.TrimSpace(line[1:])

		if result.PrintTime == "" {
			if pt, ok := matchPrintTime(body); ok {
				result.PrintTime = pt
				continue
			}
		}
		if result.Material == "" {
			for _, re := range materialRes {
				if m := re.FindStringSubmatch(body); m != nil {
					if material := strings.Trim(strings.TrimSpace(m[1]), `"`); material != "" {
						result.Material = material
						break
					}
				}
			}
		}
		if result.Colour == "" {
			if m := colourRe.FindStringSubmatch(body); m != nil {
				if colour := strings.Trim(strings.TrimSpace(m[1]), `"`); colour != "" {
					result.Colour = colour
				}
			}
		}
		if result.Material != "" && result.PrintTime != "" {
			break
		}
	}
	// A scanner error aborts the scan; keep whatever was accumulated.

	return postProcess(result)
}

// matchPrintTime recognises a Cura-style "TIME:<seconds>" line or a
// Prusa/Slic3r "estimated printing time ... = <duration>" line.
func matchPrintTime(body string) (string, bool) {
	upper := strings.ToUpper(body)
	if strings.HasPrefix(upper, "TIME:") {
		value := strings.TrimSpace(body[5:])
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return formatDurationSeconds(int(f)), true
		}
		return "", false
	}
	if m := prusaTimeRe.FindStringSubmatch(body); m != nil {
		duration := strings.TrimSpace(m[1])
		tokens := unitTokenRe.FindAllStringSubmatch(duration, -1)
		if len(tokens) == 0 {
			return duration, true
		}
		return normalizeDurationTokens(tokens), true
	}
	return "", false
}

// formatDurationSeconds renders whole seconds as "<h>h <m>m", dropping a
// zero-hours token; values with no hours and no minutes render as "0m".
func formatDurationSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return joinDurationParts(hours, minutes)
}

// normalizeDurationTokens accumulates h/m/s tokens. Leftover seconds with no
// minutes token round up to at least one minute.
func normalizeDurationTokens(tokens [][]string) string {
	var hours, minutes, seconds int
	for _, tok := range tokens {
		n, _ := strconv.Atoi(tok[1])
		switch strings.ToLower(tok[2]) {
		case "h":
			hours += n
		case "m":
			minutes += n
		case "s":
			seconds += n
		}
	}
	if seconds > 0 && minutes == 0 {
		minutes = seconds / 60
		if minutes < 1 {
			minutes = 1
		}
	}
	return joinDurationParts(hours, minutes)
}

func joinDurationParts(hours, minutes int) string {
	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "0m"
	}
	return strings.Join(parts, " ")
}

// postProcess applies the colour-name fallback and material/colour
// de-duplication once, after the scan.
func postProcess(result Metadata) Metadata {
	if fallback := colourFallback(result.Material); fallback != "" {
		if result.Colour == "" || isBareHexColour(result.Colour) {
			result.Colour = fallback
		}
	}

	colour := strings.Trim(strings.TrimSpace(result.Colour), `"`)
	if colour != "" && result.Material != "" {
		material := strings.TrimSpace(result.Material)
		if strings.Contains(strings.ToLower(material), strings.ToLower(colour)) {
			re := regexp.MustCompile(`(?i)\s*` + regexp.QuoteMeta(colour) + `\b`)
			cleaned := strings.TrimSpace(re.ReplaceAllString(material, ""))
			cleaned = strings.Join(strings.Fields(cleaned), " ")
			if cleaned != "" {
				result.Material = cleaned
			}
		}
	}
	return result
}

// colourFallback returns the material's trailing token when it looks like a
// colour name: alphabetic, longer than two characters, and not a polymer
// abbreviation.
func colourFallback(material string) string {
	fields := strings.Fields(material)
	if len(fields) == 0 {
		return ""
	}
	candidate := fields[len(fields)-1]
	if len(candidate) <= 2 {
		return ""
	}
	for _, r := range candidate {
		if !isLetter(r) {
			return ""
		}
	}
	if _, excluded := polymerAbbreviations[strings.ToUpper(candidate)]; excluded {
		return ""
	}
	return candidate
}

func isBareHexColour(colour string) bool {
	trimmed := strings.TrimPrefix(strings.TrimSpace(colour), "0x")
	return hexColourRe.MatchString(strings.Trim(trimmed, "#"))
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
