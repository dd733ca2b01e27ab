package table

import "slices"

// Direction is the order applied to the sort column.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Toggle returns the opposite direction.
func (d Direction) Toggle() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

// Sort is the caller-owned sort state. An empty Column keeps the
// records in the order they were supplied.
type Sort struct {
	Column    string
	Direction Direction
}

// SortRecords returns a sorted copy of records ordered by the raw value
// of column. The sort is stable in both directions: records whose keys
// compare equal keep their input order, so flipping the direction only
// reverses distinct keys.
func SortRecords[R Record](records []R, column string, dir Direction) []R {
	if column == "" {
		return records
	}

	type keyed struct {
		rec R
		key any
	}
	items := make([]keyed, len(records))
	for i, rec := range records {
		v, _ := Lookup(rec, column)
		items[i] = keyed{rec: rec, key: v}
	}

	slices.SortStableFunc(items, func(a, b keyed) int {
		c := Compare(a.key, b.key)
		if dir == Descending {
			return -c
		}
		return c
	})

	out := make([]R, len(items))
	for i, it := range items {
		out[i] = it.rec
	}
	return out
}
