package common

// SliceIterator iterates over a range copied out of a store. Backends whose native iterators are
// bound to a transaction use it so callers never hold the transaction open.
type SliceIterator struct {
	start  []byte
	end    []byte
	keys   [][]byte
	values [][]byte
	pos    int
}

func NewSliceIterator(start, end []byte, keys [][]byte, values [][]byte) *SliceIterator {
	return &SliceIterator{
		start:  start,
		end:    end,
		keys:   keys,
		values: values,
	}
}

func (it *SliceIterator) Domain() ([]byte, []byte) {
	return it.start, it.end
}

func (it *SliceIterator) Valid() bool {
	return it.pos < len(it.keys)
}

func (it *SliceIterator) assertValid() {
	if !it.Valid() {
		panic("iterator is invalid")
	}
}

func (it *SliceIterator) Next() {
	it.assertValid()
	it.pos++
}

func (it *SliceIterator) Key() []byte {
	it.assertValid()
	return it.keys[it.pos]
}

func (it *SliceIterator) Value() []byte {
	it.assertValid()
	return it.values[it.pos]
}

func (it *SliceIterator) Error() error {
	return nil
}

func (it *SliceIterator) Close() error {
	it.keys, it.values = nil, nil
	return nil
}
