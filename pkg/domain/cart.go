package domain

import (
	"encoding/json"
	"sort"
)

// IDSet is an immutable set of equipment ids. The zero value is empty and
// every operation returns a new set.
type IDSet struct {
	ids map[int64]struct{}
}

// NewIDSet builds a set from ids, dropping duplicates.
func NewIDSet(ids ...int64) IDSet {
	set := IDSet{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		set.ids[id] = struct{}{}
	}
	return set
}

// Contains reports membership.
func (s IDSet) Contains(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of ids.
func (s IDSet) Len() int { return len(s.ids) }

// IDs returns the members in ascending order.
func (s IDSet) IDs() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Toggle returns the symmetric difference of s and {id}.
func (s IDSet) Toggle(id int64) IDSet {
	next := s.clone()
	if _, ok := next.ids[id]; ok {
		delete(next.ids, id)
	} else {
		next.ids[id] = struct{}{}
	}
	return next
}

// Without returns s minus {id}.
func (s IDSet) Without(id int64) IDSet {
	next := s.clone()
	delete(next.ids, id)
	return next
}

// Union returns the deduplicated union of s and other.
func (s IDSet) Union(other IDSet) IDSet {
	next := s.clone()
	for id := range other.ids {
		next.ids[id] = struct{}{}
	}
	return next
}

// Equal reports whether both sets hold the same ids.
func (s IDSet) Equal(other IDSet) bool {
	if len(s.ids) != len(other.ids) {
		return false
	}
	for id := range s.ids {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as a sorted array.
func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an array of ids.
func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}

func (s IDSet) clone() IDSet {
	next := IDSet{ids: make(map[int64]struct{}, len(s.ids)+1)}
	for id := range s.ids {
		next.ids[id] = struct{}{}
	}
	return next
}

// ToggleSelection flips id in the transient selection.
func ToggleSelection(selection IDSet, id int64) IDSet {
	return selection.Toggle(id)
}

// ToggleCart flips id in the cart.
func ToggleCart(cart IDSet, id int64) IDSet {
	return cart.Toggle(id)
}

// AddSelectionToCart merges the selection into the cart and resets the selection.
func AddSelectionToCart(cart, selection IDSet) (IDSet, IDSet) {
	return cart.Union(selection), IDSet{}
}
