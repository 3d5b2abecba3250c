package headers

import (
	"iter"
	"strings"
)

type Pair struct {
	Key, Value string
}

// Headers is an ordered multimap of header fields. Lookups are case-insensitive,
// while iteration yields the pairs exactly in the order and spelling they were
// added, which matters when the headers are serialized.
type Headers struct {
	pairs []Pair
	// index maps a lowercased name to positions of its values in pairs.
	index map[string][]int
}

// New returns an instance with pre-allocated storage for n pairs.
func New(n int) *Headers {
	return &Headers{
		pairs: make([]Pair, 0, n),
		index: make(map[string][]int, n),
	}
}

// NewFromMap returns a new instance with already inserted values from given map.
// Note: as maps are unordered, the resulting pairs are unordered, too.
func NewFromMap(m map[string][]string) *Headers {
	h := New(len(m))

	for key, values := range m {
		for _, value := range values {
			h.Add(key, value)
		}
	}

	return h
}

// Add appends a new pair. Values of the same key are never merged.
func (h *Headers) Add(key, value string) *Headers {
	if h.index == nil {
		h.index = make(map[string][]int)
	}

	norm := normalize(key)
	h.index[norm] = append(h.index[norm], len(h.pairs))
	h.pairs = append(h.pairs, Pair{Key: key, Value: value})

	return h
}

// Set replaces all the values of the key by the single value. The position of the
// first occurrence is preserved, other occurrences are removed.
func (h *Headers) Set(key, value string) *Headers {
	positions := h.index[normalize(key)]
	if len(positions) == 0 {
		return h.Add(key, value)
	}

	h.pairs[positions[0]] = Pair{Key: key, Value: value}
	if len(positions) > 1 {
		h.remove(positions[1:])
	}

	return h
}

// Delete removes all the values of the key.
func (h *Headers) Delete(key string) *Headers {
	if positions := h.index[normalize(key)]; len(positions) > 0 {
		h.remove(positions)
	}

	return h
}

// Get returns the first value corresponding to the key and a bool, indicating whether
// the key exists.
func (h *Headers) Get(key string) (string, bool) {
	positions := h.index[normalize(key)]
	if len(positions) == 0 {
		return "", false
	}

	return h.pairs[positions[0]].Value, true
}

// Value returns the first value, corresponding to the key. Otherwise, empty string is returned
func (h *Headers) Value(key string) string {
	return h.ValueOr(key, "")
}

// ValueOr returns either the first value corresponding to the key or custom value, defined
// via the second parameter
func (h *Headers) ValueOr(key, or string) string {
	value, found := h.Get(key)
	if !found {
		return or
	}

	return value
}

// Values returns all values of the key in their arrival order. Returns nil if the key
// doesn't exist.
func (h *Headers) Values(key string) []string {
	positions := h.index[normalize(key)]
	if len(positions) == 0 {
		return nil
	}

	values := make([]string, len(positions))
	for i, pos := range positions {
		values[i] = h.pairs[pos].Value
	}

	return values
}

// Has indicates, whether there's an entry of the key
func (h *Headers) Has(key string) bool {
	return len(h.index[normalize(key)]) > 0
}

// Keys returns all unique keys in the order of their first appearance, spelled as
// they were at that first appearance.
func (h *Headers) Keys() []string {
	keys := make([]string, 0, len(h.index))

	for i, pair := range h.pairs {
		if h.index[normalize(pair.Key)][0] == i {
			keys = append(keys, pair.Key)
		}
	}

	return keys
}

// Iter returns an iterator over all the pairs in insertion order.
func (h *Headers) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range h.pairs {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Len returns the number of pairs.
func (h *Headers) Len() int {
	return len(h.pairs)
}

// Clone creates a deep copy, which may be used later or stored somewhere safely.
func (h *Headers) Clone() *Headers {
	clone := New(len(h.pairs))
	for _, pair := range h.pairs {
		clone.Add(pair.Key, pair.Value)
	}

	return clone
}

// Unwrap reveals underlying data structure.
func (h *Headers) Unwrap() []Pair {
	return h.pairs
}

// Clear all the entries. However, all the allocated space won't be freed
func (h *Headers) Clear() {
	h.pairs = h.pairs[:0]
	clear(h.index)
}

func (h *Headers) remove(positions []int) {
	drop := make(map[int]struct{}, len(positions))
	for _, pos := range positions {
		drop[pos] = struct{}{}
	}

	kept := h.pairs[:0]
	for i, pair := range h.pairs {
		if _, found := drop[i]; !found {
			kept = append(kept, pair)
		}
	}

	h.pairs = kept
	h.reindex()
}

func (h *Headers) reindex() {
	clear(h.index)
	for i, pair := range h.pairs {
		norm := normalize(pair.Key)
		h.index[norm] = append(h.index[norm], i)
	}
}

// normalize lowercases the key, avoiding the allocation if it's lowercased already.
func normalize(key string) string {
	for i := 0; i < len(key); i++ {
		if c := key[i]; c >= 'A' && c <= 'Z' {
			return strings.ToLower(key)
		}
	}

	return key
}
