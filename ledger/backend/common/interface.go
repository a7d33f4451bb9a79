package common

// KVStore is an ordered key/value store. Keys compare bytewise.
type KVStore interface {
	// Get returns nil, nil for a missing key.
	// CONTRACT: key readonly []byte
	Get(key []byte) ([]byte, error)

	Has(key []byte) (bool, error)

	// CONTRACT: key, value readonly []byte
	Set(key []byte, value []byte) error

	// SetSync is Set followed by a flush to disk.
	SetSync(key []byte, value []byte) error

	Delete(key []byte) error

	// NewBatch starts a group of writes applied together.
	NewBatch() Batch

	// Iterator walks [start, end) in ascending order. A nil start or end is unbounded.
	Iterator(start, end []byte) (Iterator, error)

	// ReverseIterator walks [start, end) in descending order.
	ReverseIterator(start, end []byte) (Iterator, error)

	Stats() map[string]string

	Close() error
}

// Iterator represents an iterator over a domain of keys. Callers must call Close when done.
type Iterator interface {
	// Domain returns the start (inclusive) and end (exclusive) limits of the iterator.
	// CONTRACT: start, end readonly []byte
	Domain() (start []byte, end []byte)

	// Valid returns whether the current iterator is valid. Once invalid, the Iterator remains
	// invalid forever.
	Valid() bool

	// Next moves the iterator to the next key in the database, as defined by order of iteration.
	// If Valid returns false, this method will panic.
	Next()

	// Key returns the key at the current position. Panics if the iterator is invalid.
	// CONTRACT: key readonly []byte
	Key() (key []byte)

	// Value returns the value at the current position. Panics if the iterator is invalid.
	// CONTRACT: value readonly []byte
	Value() (value []byte)

	// Error returns the last error encountered by the iterator, if any.
	Error() error

	// Close closes the iterator, relasing any allocated resources.
	Close() error
}
