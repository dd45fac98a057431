package index

import (
	"context"
	"log/slog"

	"github.com/starford/printdeck/internal/library"
	"github.com/starford/printdeck/internal/models"
)

// Sync scans the models root and brings the index up to date:
//   - new folders and folders with changed sidecars are upserted
//   - folders removed from disk are deleted from the index
func Sync(ctx context.Context, db *DB, lib *library.Library, logger *slog.Logger) error {
	scanned, err := lib.Scan(ctx)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(scanned))
	for _, m := range scanned {
		disk[m.FolderLeaf] = struct{}{}

		if cs, ok := checksums[m.FolderLeaf]; ok && cs == m.SidecarChecksum {
			continue
		}

		if err := indexModel(db, m); err != nil {
			logger.Warn("sync: index failed", slog.String("leaf", m.FolderLeaf), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("leaf", m.FolderLeaf))
		}
	}

	// Remove stale entries.
	for leaf := range checksums {
		if _, ok := disk[leaf]; !ok {
			if err := db.DeleteModel(leaf); err != nil {
				logger.Warn("sync: delete failed", slog.String("leaf", leaf), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("leaf", leaf))
			}
		}
	}

	return nil
}

// indexModel upserts a derived model into the DB.
func indexModel(db *DB, m *models.Model) error {
	row := ModelRow{
		Leaf:         m.FolderLeaf,
		Name:         m.Name,
		Checksum:     m.SidecarChecksum,
		Materials:    m.Materials,
		PrintTime:    m.PrintTime,
		PrintMinutes: m.PrintTimeMinutes,
		Active:       m.Active,
		LastModified: m.LastModified,
		TimeCreated:  m.TimeCreated,
	}
	return db.UpsertModel(row, m.SearchBlob)
}
