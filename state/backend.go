package state

// Backend is the durable key-value collaborator consumed by the store. Its
// wire format and storage engine are out of scope for this module (spec §1);
// only this narrow contract is assumed.
type Backend interface {
	GetRow(table, key string) (*Entry, error)
	GetRows(table string, keys []string) ([]*Entry, error)
	GetPrimaryKeys(table string, match func(key string) bool) ([]string, error)
	SetRow(table, key string, entry *Entry) error
	OpenTable(name string) (*Table, error)
	CreateTable(name string, valueFields []string) (*Table, error)

	// Prepare stages mutations for block number n durably and returns only
	// after durable acknowledgement. Commit/Rollback are always possible
	// once Prepare has succeeded.
	Prepare(n uint64, mutations []Mutation) error
	Commit(n uint64) error
	Rollback(n uint64) error
}

// Mutation is one journaled write: the prior value (nil if the key was
// previously absent anywhere in the chain) and the new value written.
type Mutation struct {
	Table string
	Key   string
	Prior *Entry
	New   *Entry
}
