package table

import (
	"cmp"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// EmptyCell is shown for a column whose key resolves to no value.
const EmptyCell = "—"

// Fielder lets a record expose its fields directly instead of being read
// through reflection. Keys are matched case-insensitively.
type Fielder interface {
	Fields() map[string]any
}

// fieldSet is the cached set of exported fields of one struct type.
type fieldSet struct {
	byKey map[string][]int // lower-cased json name or Go name -> index path
	all   [][]int
}

var fieldCache sync.Map // reflect.Type -> *fieldSet

func fieldsOf(t reflect.Type) *fieldSet {
	if fs, ok := fieldCache.Load(t); ok {
		return fs.(*fieldSet)
	}
	fs := &fieldSet{byKey: make(map[string][]int)}
	collectFields(t, nil, fs)
	actual, _ := fieldCache.LoadOrStore(t, fs)
	return actual.(*fieldSet)
}

func collectFields(t reflect.Type, prefix []int, fs *fieldSet) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := append(append([]int(nil), prefix...), i)

		if !f.IsExported() {
			continue
		}
		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectFields(ft, path, fs)
				continue
			}
		}

		tag := strings.Split(f.Tag.Get("json"), ",")[0]
		if tag == "-" {
			continue
		}
		fs.all = append(fs.all, path)
		if tag != "" {
			if _, taken := fs.byKey[strings.ToLower(tag)]; !taken {
				fs.byKey[strings.ToLower(tag)] = path
			}
		}
		if _, taken := fs.byKey[strings.ToLower(f.Name)]; !taken {
			fs.byKey[strings.ToLower(f.Name)] = path
		}
	}
}

// structValue dereferences v down to a struct, reporting false for nil
// pointers and non-struct kinds.
func structValue(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.Kind() == reflect.Struct
}

// fieldByPath walks an index path, stopping at nil embedded pointers.
func fieldByPath(v reflect.Value, path []int) (reflect.Value, bool) {
	for i, idx := range path {
		if i > 0 {
			var ok bool
			if v, ok = structValue(v); !ok {
				return reflect.Value{}, false
			}
		}
		v = v.Field(idx)
	}
	return v, true
}

// Lookup resolves key on rec. The second result is false when the record
// has no such field.
func Lookup(rec any, key string) (any, bool) {
	if f, ok := rec.(Fielder); ok {
		fields := f.Fields()
		if v, ok := fields[key]; ok {
			return v, true
		}
		for k, v := range fields {
			if strings.EqualFold(k, key) {
				return v, true
			}
		}
		return nil, false
	}

	sv, ok := structValue(reflect.ValueOf(rec))
	if !ok {
		return nil, false
	}
	path, ok := fieldsOf(sv.Type()).byKey[strings.ToLower(key)]
	if !ok {
		return nil, false
	}
	fv, ok := fieldByPath(sv, path)
	if !ok {
		return nil, true
	}
	return fv.Interface(), true
}

// values returns every field value of rec, in declaration order for
// structs.
func values(rec any) []any {
	if f, ok := rec.(Fielder); ok {
		fields := f.Fields()
		out := make([]any, 0, len(fields))
		for _, v := range fields {
			out = append(out, v)
		}
		return out
	}

	sv, ok := structValue(reflect.ValueOf(rec))
	if !ok {
		return []any{rec}
	}
	fs := fieldsOf(sv.Type())
	out := make([]any, 0, len(fs.all))
	for _, path := range fs.all {
		fv, ok := fieldByPath(sv, path)
		if !ok {
			continue
		}
		out = append(out, fv.Interface())
	}
	return out
}

// ═══════════════════════════════════════════════════════════════════════════
// Value formatting and ordering
// ═══════════════════════════════════════════════════════════════════════════

// deref unwraps pointers and interfaces; nil comes back as nil.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

// Stringify is the display and search form of a raw field value.
// Nil values become the empty string.
func Stringify(v any) string {
	v = deref(v)
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02 15:04")
	case fmt.Stringer:
		return x.String()
	case []string:
		return strings.Join(x, ", ")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Stringify(rv.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	case reflect.Map:
		parts := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			parts = append(parts, Stringify(iter.Key().Interface())+"="+Stringify(iter.Value().Interface()))
		}
		sort.Strings(parts)
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

type valueClass int

const (
	classNil valueClass = iota
	classInt
	classUint
	classFloat
	classString
	classTime
	classBool
	classOther
)

func classify(v any) (valueClass, reflect.Value) {
	if v == nil {
		return classNil, reflect.Value{}
	}
	if _, ok := v.(time.Time); ok {
		return classTime, reflect.ValueOf(v)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return classInt, rv
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return classUint, rv
	case reflect.Float32, reflect.Float64:
		return classFloat, rv
	case reflect.String:
		return classString, rv
	case reflect.Bool:
		return classBool, rv
	}
	return classOther, rv
}

func isNumeric(c valueClass) bool {
	return c == classInt || c == classUint || c == classFloat
}

func asFloat(c valueClass, rv reflect.Value) float64 {
	switch c {
	case classInt:
		return float64(rv.Int())
	case classUint:
		return float64(rv.Uint())
	}
	return rv.Float()
}

// Compare orders two raw field values. Nil sorts before everything;
// numbers compare numerically, strings lexicographically, times
// chronologically and bools false before true. Anything else, including
// mixed kinds, compares by its Stringify form.
func Compare(a, b any) int {
	a, b = deref(a), deref(b)
	ca, ra := classify(a)
	cb, rb := classify(b)

	switch {
	case ca == classNil && cb == classNil:
		return 0
	case ca == classNil:
		return -1
	case cb == classNil:
		return 1
	}

	switch {
	case ca == classInt && cb == classInt:
		return cmp.Compare(ra.Int(), rb.Int())
	case ca == classUint && cb == classUint:
		return cmp.Compare(ra.Uint(), rb.Uint())
	case isNumeric(ca) && isNumeric(cb):
		return cmp.Compare(asFloat(ca, ra), asFloat(cb, rb))
	case ca == classString && cb == classString:
		return cmp.Compare(ra.String(), rb.String())
	case ca == classTime && cb == classTime:
		return a.(time.Time).Compare(b.(time.Time))
	case ca == classBool && cb == classBool:
		x, y := ra.Bool(), rb.Bool()
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return cmp.Compare(Stringify(a), Stringify(b))
}
