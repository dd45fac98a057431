package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/printdeck/internal/apperr"
	"github.com/starford/printdeck/internal/gcodemeta"
	"github.com/starford/printdeck/internal/models"
)

// TimestampFormat is how sidecar timestamps are written: UTC, second
// precision, trailing Z.
const TimestampFormat = "2006-01-02T15:04:05Z"

// NowTimestamp returns the current time in sidecar format.
func NowTimestamp() string {
	return time.Now().UTC().Format(TimestampFormat)
}

var unsafeLeafChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

// GcodeSource is one G-code file to copy into a new model package, with
// optional caller-supplied metadata.
type GcodeSource struct {
	Path      string
	Material  string
	Colour    string
	PrintTime string
}

// CreateRequest describes a new model package: a display name, source
// geometry files to copy in, G-code variants, and an optional preview image.
type CreateRequest struct {
	Name        string
	ModelPaths  []string
	Gcodes      []GcodeSource
	PreviewPath string
}

// FolderLeafForName derives a filesystem-safe folder name from a model name.
func FolderLeafForName(name string) string {
	leaf := unsafeLeafChars.ReplaceAllString(strings.TrimSpace(name), "")
	leaf = strings.Join(strings.Fields(leaf), " ")
	leaf = strings.ReplaceAll(leaf, " ", "_")
	return leaf
}

// CreateModel builds a new model folder: copies the source files in, fills
// blank G-code metadata from the files themselves, and writes a fresh
// timestamped sidecar. Any failure removes the whole new folder so a partial
// package never appears in the library.
func (l *Library) CreateModel(req CreateRequest) (*models.Model, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("library: model name is required")
	}
	if len(req.ModelPaths) == 0 {
		return nil, fmt.Errorf("library: at least one model file is required")
	}
	leaf := FolderLeafForName(req.Name)
	if leaf == "" {
		return nil, fmt.Errorf("library: model name yields no usable folder name")
	}
	folder, err := l.safeLeaf(leaf)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(folder); statErr == nil {
		return nil, fmt.Errorf("create %s: %w", leaf, apperr.ErrAlreadyExists)
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("library: create folder: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = os.RemoveAll(folder)
		}
	}()

	sc := models.Sidecar{
		Name:         strings.TrimSpace(req.Name),
		LastModified: NowTimestamp(),
		TimeCreated:  NowTimestamp(),
	}

	for _, src := range req.ModelPaths {
		name, err := copyIntoFolder(src, folder)
		if err != nil {
			return nil, err
		}
		sc.ModelFiles = append(sc.ModelFiles, name)
	}

	for _, g := range req.Gcodes {
		name, err := copyIntoFolder(g.Path, folder)
		if err != nil {
			return nil, err
		}
		entry := models.GcodeEntry{
			File:      name,
			Material:  g.Material,
			Colour:    g.Colour,
			PrintTime: g.PrintTime,
		}
		fillGcodeEntry(&entry, filepath.Join(folder, name))
		sc.Gcodes = append(sc.Gcodes, entry)
	}

	if req.PreviewPath != "" {
		name, err := copyIntoFolder(req.PreviewPath, folder)
		if err != nil {
			return nil, err
		}
		sc.PreviewImage = name
	}

	if err := l.WriteSidecar(leaf, &sc); err != nil {
		return nil, err
	}

	success = true
	return l.loadModel(folder)
}

// fillGcodeEntry completes blank metadata fields from the copied G-code
// file's comments, then from its filename convention.
func fillGcodeEntry(entry *models.GcodeEntry, path string) {
	if entry.Material == "" || entry.Colour == "" || entry.PrintTime == "" {
		extracted := gcodemeta.Extract(path, extractorLineBudget)
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
		fromName := gcodemeta.ParseFilename(path)
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
}

// copyIntoFolder copies src into folder under its base name, preserving the
// source's modification time, and returns the base name.
func copyIntoFolder(src, folder string) (string, error) {
	name := filepath.Base(src)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("library: invalid source path: %s", src)
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("library: stat source: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("library: source is a directory: %s", src)
	}
	if err := copyFile(src, filepath.Join(folder, name), info.Mode(), info.ModTime()); err != nil {
		return "", err
	}
	return name, nil
}

func copyFile(src, dst string, mode os.FileMode, mtime time.Time) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("library: open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("library: create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("library: copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("library: close destination: %w", err)
	}
	_ = os.Chtimes(dst, mtime, mtime)
	return nil
}
