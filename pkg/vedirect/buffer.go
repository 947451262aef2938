// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// fieldBuffer holds one field name or value. One slot is reserved for the
// terminator so the usable length is MaxValueLen-1.
type fieldBuffer struct {
	data [MaxValueLen]byte
	n    int
}

func (f *fieldBuffer) append(b byte) bool {
	if f.n >= len(f.data)-1 {
		return false
	}
	f.data[f.n] = b
	f.n++
	return true
}

func (f *fieldBuffer) reset() {
	f.n = 0
}

func (f *fieldBuffer) bytes() []byte {
	return f.data[:f.n]
}

// hexBuffer holds a hex frame including its leading ':'. Like fieldBuffer
// it keeps a terminator slot, so at most MaxHexLen-1 characters fit.
type hexBuffer struct {
	data [MaxHexLen]byte
	n    int
}

func (h *hexBuffer) append(b byte) bool {
	if h.n >= len(h.data)-1 {
		return false
	}
	h.data[h.n] = b
	h.n++
	return true
}

func (h *hexBuffer) reset() {
	h.n = 0
}

func (h *hexBuffer) bytes() []byte {
	return h.data[:h.n]
}

// fieldTable stages the pairs of a text block until its checksum verifies.
type fieldTable struct {
	names  [MaxFieldsPerBlock]fieldBuffer
	values [MaxFieldsPerBlock]fieldBuffer
	n      int
}

func (t *fieldTable) add(name, value *fieldBuffer) bool {
	if t.n >= MaxFieldsPerBlock {
		return false
	}
	t.names[t.n] = *name
	t.values[t.n] = *value
	t.n++
	return true
}

func (t *fieldTable) reset() {
	t.n = 0
}
