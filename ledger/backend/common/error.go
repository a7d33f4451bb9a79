package common

import (
	"bytes"
	"errors"
)

var (
	// ErrKeyEmpty is returned when attempting to use an empty or nil key.
	ErrKeyEmpty = errors.New("key cannot be empty")

	// ErrValueNil is returned when attempting to set a nil value.
	ErrValueNil = errors.New("value cannot be nil")

	ErrClosed = errors.New("backend is closed")
)

func ValidateKv(key, value []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	if value == nil {
		return ErrValueNil
	}
	return nil
}

// InDomain reports whether key lies in [start, end); nil bounds are open.
func InDomain(key, start, end []byte) bool {
	if start != nil && bytes.Compare(key, start) < 0 {
		return false
	}
	if end != nil && bytes.Compare(key, end) >= 0 {
		return false
	}
	return true
}

// PrefixEnd is the smallest key greater than every key with the given prefix, or nil when no such
// key exists.
func PrefixEnd(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	ret := make([]byte, len(prefix))
	copy(ret, prefix)
	for i := len(ret) - 1; i >= 0; i-- {
		if ret[i] < 0xFF {
			ret[i]++
			return ret[:i+1]
		}
	}
	return nil
}
