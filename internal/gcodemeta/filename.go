package gcodemeta

import (
	"path/filepath"
	"regexp"
	"strings"
)

var timeTokenRe = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?$`)

// FilenameMeta is metadata recovered from a G-code filename that follows the
// "Name_1h30m_Material_Colour.gcode" convention.
type FilenameMeta struct {
	Name      string
	Material  string
	Colour    string
	PrintTime string
}

// ParseFilename splits an underscore-delimited G-code filename around its
// time token. Filenames without a recognisable time token yield an empty
// result. Trailing tokens after the time become material, with the last one
// treated as a colour when more than one is present.
func ParseFilename(path string) FilenameMeta {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var tokens []string
	for _, tok := range strings.Split(base, "_") {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return FilenameMeta{}
	}

	timeIndex := -1
	for i, tok := range tokens {
		lower := strings.ToLower(tok)
		if timeTokenRe.MatchString(lower) && strings.ContainsAny(lower, "0123456789") {
			timeIndex = i
			break
		}
	}
	if timeIndex < 0 {
		return FilenameMeta{}
	}

	clean := func(parts []string) string {
		joined := strings.Join(parts, " ")
		joined = strings.ReplaceAll(joined, "-", " ")
		return strings.Join(strings.Fields(joined), " ")
	}

	timeToken := tokens[timeIndex]
	printTime := ""
	if m := timeTokenRe.FindStringSubmatch(strings.ToLower(timeToken)); m != nil {
		if m[1] != "" {
			printTime += m[1] + "h"
		}
		if m[2] != "" {
			printTime += m[2] + "m"
		}
	}
	if printTime == "" {
		printTime = timeToken
	}

	var material, colour string
	trailing := tokens[timeIndex+1:]
	if len(trailing) > 1 {
		colour = clean(trailing[len(trailing)-1:])
		material = clean(trailing[:len(trailing)-1])
	} else if len(trailing) == 1 {
		material = clean(trailing)
	}

	return FilenameMeta{
		Name:      clean(tokens[:timeIndex]),
		Material:  material,
		Colour:    colour,
		PrintTime: printTime,
	}
}
