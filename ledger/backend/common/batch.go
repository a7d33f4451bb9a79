package common

import "errors"

var ErrBatchClosed = errors.New("batch has been written or closed")

// Batch represents a group of writes applied atomically by Write. Callers must call Close on the
// batch when done.
//
// Given keys and values should be considered read-only, and must not be modified after passing them
// to the batch.
type Batch interface {
	// CONTRACT: key, value readonly []byte
	Set(key, value []byte) error

	// CONTRACT: key readonly []byte
	Delete(key []byte) error

	// Write applies the batch. Only Close can be called after, other methods will error.
	Write() error

	// WriteSync is Write followed by a flush to disk.
	WriteSync() error

	// Close is idempotent.
	Close() error
}

type BatchOp struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// OpBatch records operations for backends that replay them inside one transaction.
type OpBatch struct {
	ops    []BatchOp
	closed bool
}

func (b *OpBatch) Set(key, value []byte) error {
	if b.closed {
		return ErrBatchClosed
	}
	if err := ValidateKv(key, value); err != nil {
		return err
	}
	b.ops = append(b.ops, BatchOp{Key: key, Value: value})
	return nil
}

func (b *OpBatch) Delete(key []byte) error {
	if b.closed {
		return ErrBatchClosed
	}
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	b.ops = append(b.ops, BatchOp{Key: key, Delete: true})
	return nil
}

// Take hands out the recorded operations once; the batch is closed afterwards.
func (b *OpBatch) Take() ([]BatchOp, error) {
	if b.closed {
		return nil, ErrBatchClosed
	}
	ops := b.ops
	b.ops, b.closed = nil, true
	return ops, nil
}

func (b *OpBatch) Close() error {
	b.ops, b.closed = nil, true
	return nil
}
