package table

import "sort"

// SelectionState summarizes a selection against a reference sequence.
type SelectionState int

const (
	SelectNone SelectionState = iota
	SelectPartial
	SelectAll
)

func (s SelectionState) String() string {
	switch s {
	case SelectPartial:
		return "partial"
	case SelectAll:
		return "all"
	}
	return "none"
}

// Selection is an immutable set of record IDs. The zero value is empty.
// Every mutating operation returns a new Selection and leaves the
// receiver untouched.
type Selection struct {
	ids map[string]struct{}
}

// NewSelection builds a selection holding ids.
func NewSelection(ids ...string) Selection {
	s := Selection{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Has reports whether id is selected.
func (s Selection) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// Len is the number of selected IDs, stale ones included.
func (s Selection) Len() int {
	return len(s.ids)
}

// IDs returns the selected IDs in sorted order.
func (s Selection) IDs() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// With returns a copy of s where id is included or excluded.
func (s Selection) With(id string, included bool) Selection {
	out := Selection{ids: make(map[string]struct{}, len(s.ids)+1)}
	for k := range s.ids {
		out.ids[k] = struct{}{}
	}
	if included {
		out.ids[id] = struct{}{}
	} else {
		delete(out.ids, id)
	}
	return out
}

// Equal reports whether both selections hold the same IDs.
func (s Selection) Equal(o Selection) bool {
	if len(s.ids) != len(o.ids) {
		return false
	}
	for id := range s.ids {
		if _, ok := o.ids[id]; !ok {
			return false
		}
	}
	return true
}

// Aggregate measures sel against visible: none when no visible ID is
// selected, all when every visible ID is selected and visible is
// non-empty, partial otherwise.
func Aggregate[R Record](visible []R, sel Selection) SelectionState {
	if len(visible) == 0 {
		return SelectNone
	}
	hit := 0
	for _, rec := range visible {
		if sel.Has(rec.ID()) {
			hit++
		}
	}
	switch {
	case hit == 0:
		return SelectNone
	case hit == len(visible):
		return SelectAll
	}
	return SelectPartial
}

// Materialize returns the records of visible whose IDs are selected, in
// visible order. Stale IDs are ignored.
func Materialize[R Record](visible []R, sel Selection) []R {
	out := make([]R, 0, sel.Len())
	for _, rec := range visible {
		if sel.Has(rec.ID()) {
			out = append(out, rec)
		}
	}
	return out
}

// Prune drops the IDs that no longer belong to any record in records.
func Prune[R Record](records []R, sel Selection) Selection {
	out := Selection{ids: make(map[string]struct{}, sel.Len())}
	for _, rec := range records {
		if sel.Has(rec.ID()) {
			out.ids[rec.ID()] = struct{}{}
		}
	}
	return out
}

// Tracker applies selection changes and reports them. It holds no
// selection of its own; each call takes the current Selection and
// returns the next one.
type Tracker[R Record] struct {
	// OnChange receives the selected records whenever a call changes the
	// set of selected IDs.
	OnChange func(selected []R)
}

// SelectAll selects every record in visible.
func (t Tracker[R]) SelectAll(visible []R, sel Selection) Selection {
	next := NewSelection()
	for _, rec := range visible {
		next.ids[rec.ID()] = struct{}{}
	}
	return t.commit(visible, sel, next)
}

// DeselectAll empties the selection.
func (t Tracker[R]) DeselectAll(visible []R, sel Selection) Selection {
	return t.commit(visible, sel, NewSelection())
}

// Toggle includes or excludes a single ID.
func (t Tracker[R]) Toggle(visible []R, sel Selection, id string, included bool) Selection {
	return t.commit(visible, sel, sel.With(id, included))
}

func (t Tracker[R]) commit(visible []R, prev, next Selection) Selection {
	if !prev.Equal(next) && t.OnChange != nil {
		t.OnChange(Materialize(visible, next))
	}
	return next
}
