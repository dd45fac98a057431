package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ModelRow represents a row in the models table.
type ModelRow struct {
	Leaf         string
	Name         string
	Checksum     string
	Materials    []string
	PrintTime    string
	PrintMinutes int
	Active       bool
	LastModified time.Time
	TimeCreated  time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Leaf    string
	Name    string
	Snippet string
}

// UpsertModel inserts or replaces a model row and its FTS entry within a
// transaction. blob is the lowercased search text for the model.
func (db *DB) UpsertModel(r ModelRow, blob string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	materialsJSON, _ := json.Marshal(r.Materials)

	_, err = tx.Exec(`
		INSERT INTO models (leaf, name, checksum, materials, print_time, print_minutes, active, blob, last_modified, time_created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(leaf) DO UPDATE SET
			name          = excluded.name,
			checksum      = excluded.checksum,
			materials     = excluded.materials,
			print_time    = excluded.print_time,
			print_minutes = excluded.print_minutes,
			active        = excluded.active,
			blob          = excluded.blob,
			last_modified = excluded.last_modified,
			time_created  = excluded.time_created
	`, r.Leaf, r.Name, r.Checksum, string(materialsJSON), r.PrintTime, r.PrintMinutes,
		r.Active, blob, r.LastModified, r.TimeCreated)
	if err != nil {
		return fmt.Errorf("index: upsert model: %w", err)
	}

	// FTS upsert (no-op when the FTS5 tag is absent).
	if err := ftsUpsert(tx, r.Leaf, r.Name, blob); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteModel removes a model row and its FTS entry.
func (db *DB) DeleteModel(leaf string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, leaf)
	_, _ = tx.Exec(`DELETE FROM models WHERE leaf = ?`, leaf)

	return tx.Commit()
}

// GetChecksum returns the stored sidecar checksum for a model, or empty
// string if the model is not indexed.
func (db *DB) GetChecksum(leaf string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM models WHERE leaf = ?`, leaf).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil // not found is fine
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns every indexed leaf mapped to its stored checksum.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT leaf, checksum FROM models`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var leaf, cs string
		if err := rows.Scan(&leaf, &cs); err != nil {
			return nil, err
		}
		out[leaf] = cs
	}
	return out, rows.Err()
}

// GetModel returns one indexed row, or nil when the leaf is not indexed.
func (db *DB) GetModel(leaf string) (*ModelRow, error) {
	row := db.conn.QueryRow(`
		SELECT leaf, name, checksum, materials, print_time, print_minutes, active, last_modified, time_created
		FROM models WHERE leaf = ?
	`, leaf)
	r, err := scanModelRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("index: get model: %w", err)
	}
	return r, nil
}

// ListModels returns indexed rows filtered by material (empty keeps all) and
// ordered by the given column expression, plus the unfiltered total count.
func (db *DB) ListModels(limit, offset int, material, sort string) ([]ModelRow, int, error) {
	if limit <= 0 {
		limit = 100
	}
	order := sortExpr(sort)

	var total int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM models`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count models: %w", err)
	}

	query := `
		SELECT leaf, name, checksum, materials, print_time, print_minutes, active, last_modified, time_created
		FROM models
	`
	args := []any{}
	if material != "" {
		// materials is a JSON array of strings; quote-wrapped LIKE matches
		// whole values only.
		query += ` WHERE materials LIKE ?`
		args = append(args, `%"`+material+`"%`)
	}
	query += ` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list models: %w", err)
	}
	defer rows.Close()

	var out []ModelRow
	for rows.Next() {
		r, err := scanModelRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

func sortExpr(sort string) string {
	switch sort {
	case "time_created":
		return "time_created DESC, leaf ASC"
	case "name_asc":
		return "name COLLATE NOCASE ASC, leaf ASC"
	case "name_desc":
		return "name COLLATE NOCASE DESC, leaf ASC"
	case "print_time":
		return "print_minutes ASC, leaf ASC"
	default:
		return "last_modified DESC, leaf ASC"
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModelRow(s rowScanner) (*ModelRow, error) {
	var r ModelRow
	var materialsJSON string
	var lastModified, timeCreated *time.Time
	if err := s.Scan(&r.Leaf, &r.Name, &r.Checksum, &materialsJSON, &r.PrintTime,
		&r.PrintMinutes, &r.Active, &lastModified, &timeCreated); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(materialsJSON), &r.Materials)
	if lastModified != nil {
		r.LastModified = *lastModified
	}
	if timeCreated != nil {
		r.TimeCreated = *timeCreated
	}
	return &r, nil
}
