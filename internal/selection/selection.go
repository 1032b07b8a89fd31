// Package selection owns a session's in-progress packet: an ordered mapping of
// sub-product id to positive quantity, its persistence, and the container that
// serializes mutations.
package selection

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one selected sub-product.
type Entry struct {
	SubProductID string `json:"subProductId"`
	Quantity     int    `json:"quantity"`
}

// Selection keeps entries in insertion order. Keys with a non-positive quantity are
// never stored. Updating an existing key keeps its position; removing and re-adding
// moves it to the end.
type Selection struct {
	order []string
	qty   map[string]int
}

func New() Selection {
	return Selection{qty: map[string]int{}}
}

// Set stores quantity for id, removing the key when quantity <= 0.
func (s *Selection) Set(id string, quantity int) {
	if s.qty == nil {
		s.qty = map[string]int{}
	}
	if quantity <= 0 {
		s.Delete(id)
		return
	}
	if _, ok := s.qty[id]; !ok {
		s.order = append(s.order, id)
	}
	s.qty[id] = quantity
}

func (s *Selection) Delete(id string) {
	if _, ok := s.qty[id]; !ok {
		return
	}
	delete(s.qty, id)
	for i, key := range s.order {
		if key == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// Get returns the quantity for id, zero when absent.
func (s Selection) Get(id string) int {
	return s.qty[id]
}

func (s Selection) Has(id string) bool {
	_, ok := s.qty[id]
	return ok
}

func (s Selection) Len() int {
	return len(s.order)
}

func (s Selection) IsEmpty() bool {
	return len(s.order) == 0
}

// Entries returns the entries in insertion order.
func (s Selection) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Entry{SubProductID: id, Quantity: s.qty[id]})
	}
	return out
}

// Each calls fn for every entry in insertion order.
func (s Selection) Each(fn func(id string, quantity int)) {
	for _, id := range s.order {
		fn(id, s.qty[id])
	}
}

// Clone returns an independent copy.
func (s Selection) Clone() Selection {
	out := Selection{
		order: append([]string(nil), s.order...),
		qty:   make(map[string]int, len(s.qty)),
	}
	for k, v := range s.qty {
		out.qty[k] = v
	}
	return out
}

// Equal compares keys, quantities and order.
func (s Selection) Equal(other Selection) bool {
	if len(s.order) != len(other.order) {
		return false
	}
	for i, id := range s.order {
		if other.order[i] != id || other.qty[id] != s.qty[id] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the selection as an object whose members follow insertion order.
func (s Selection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", s.qty[id])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object in document order. Non-positive members are dropped;
// non-integer members are an error.
func (s *Selection) UnmarshalJSON(data []byte) error {
	entries, err := decodeEntries(data)
	if err != nil {
		return err
	}
	out := New()
	for _, e := range entries {
		out.Set(e.SubProductID, e.Quantity)
	}
	*s = out
	return nil
}

// decodeEntries reads every member of a JSON object verbatim, in document order,
// including non-positive quantities.
func decodeEntries(data []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("selection: expected object, got %v", tok)
	}

	var entries []Entry
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("selection: invalid key %v", keyTok)
		}
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return nil, fmt.Errorf("selection: value for %q: %w", key, err)
		}
		qty, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("selection: value for %q is not an integer", key)
		}
		entries = append(entries, Entry{SubProductID: key, Quantity: int(qty)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}
