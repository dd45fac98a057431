package index

// ModelIndex defines the interface for model indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ModelIndex interface {
	UpsertModel(r ModelRow, blob string) error
	DeleteModel(leaf string) error
	GetChecksum(leaf string) (string, error)
	GetModel(leaf string) (*ModelRow, error)
	ListModels(limit, offset int, material, sort string) ([]ModelRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies ModelIndex at compile time.
var _ ModelIndex = (*DB)(nil)
