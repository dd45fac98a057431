//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS models_fts USING fts5(
			leaf UNINDEXED,
			name,
			blob,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, leaf, name, blob string) error {
	_, _ = tx.Exec(`DELETE FROM models_fts WHERE leaf = ?`, leaf)
	_, err := tx.Exec(`INSERT INTO models_fts (leaf, name, blob) VALUES (?, ?, ?)`,
		leaf, name, blob)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, leaf string) {
	_, _ = tx.Exec(`DELETE FROM models_fts WHERE leaf = ?`, leaf)
}

// Search performs an FTS5 full-text search over model names and search
// blobs and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT leaf,
		       name,
		       snippet(models_fts, 2, '<b>', '</b>', '...', 64)
		FROM models_fts
		WHERE models_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Leaf, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
