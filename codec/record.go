package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

type recordField struct {
	name      string
	index     []int
	omitEmpty bool
}

// Record flattens a struct type V (or pointer to struct) using its `json`
// field names. V's field types are the authoritative decode hints:
//
//   - scalars and time.Time are stored as text (times as RFC3339Nano UTC)
//   - structs, slices, maps and pointers to structs are stored as JSON text
//   - nil pointers, slices and maps are stored as "null"
//   - zero values of `omitempty` fields are stored as "undefined"
//
// Encoded entries also carry HintsField, so DecodeFields reads them exactly.
type Record[V any] struct {
	ptr    bool
	typ    reflect.Type
	fields []recordField
}

// NewRecord builds the field table for V once.
func NewRecord[V any]() (*Record[V], error) {
	t := reflect.TypeOf((*V)(nil)).Elem()
	r := &Record[V]{typ: t}
	if t.Kind() == reflect.Pointer {
		r.ptr = true
		t = t.Elem()
		r.typ = t
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("codec: record type %s is not a struct", t)
	}
	r.fields = collectFields(t, nil)
	for _, f := range r.fields {
		if f.name == HintsField {
			return nil, ErrReservedField
		}
	}
	return r, nil
}

// MustRecord is like NewRecord but panics on error.
func MustRecord[V any]() *Record[V] {
	r, err := NewRecord[V]()
	if err != nil {
		panic(err)
	}
	return r
}

func collectFields(t reflect.Type, parent []int) []recordField {
	var out []recordField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		idx := append(append([]int(nil), parent...), i)
		name, opts, _ := strings.Cut(tag, ",")
		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			out = append(out, collectFields(sf.Type, idx)...)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out = append(out, recordField{
			name:      name,
			index:     idx,
			omitEmpty: strings.Contains(","+opts+",", ",omitempty,"),
		})
	}
	return out
}

// Fields converts v into a dynamic record.
func (r *Record[V]) Fields(v V) Fields {
	rv := reflect.ValueOf(v)
	if r.ptr {
		if rv.IsNil() {
			return Fields{}
		}
		rv = rv.Elem()
	}
	out := make(Fields, len(r.fields))
	for _, f := range r.fields {
		fv := rv.FieldByIndex(f.index)
		if f.omitEmpty && fv.IsZero() {
			out[f.name] = Undefined
			continue
		}
		out[f.name] = leaf(fv)
	}
	return out
}

func leaf(fv reflect.Value) any {
	switch fv.Kind() {
	case reflect.Pointer:
		if fv.IsNil() {
			return nil
		}
		if e := fv.Elem(); e.Kind() != reflect.Struct || e.Type() == timeType {
			return leaf(e)
		}
		return fv.Interface()
	case reflect.Map, reflect.Slice, reflect.Interface:
		if fv.IsNil() {
			return nil
		}
		return fv.Interface()
	case reflect.String:
		return fv.String()
	case reflect.Bool:
		return fv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fv.Uint()
	case reflect.Float32, reflect.Float64:
		return fv.Float()
	}
	return fv.Interface()
}

// Encode flattens v for a cache hash.
func (r *Record[V]) Encode(v V) (map[string]string, error) {
	return EncodeFields(r.Fields(v))
}

// Decode rebuilds a V. Fields that fail to decode are left at their zero
// value and reported; all other fields are still populated.
func (r *Record[V]) Decode(m map[string]string) (V, []*FieldError) {
	var errs []*FieldError
	hints, herr := parseHints(m)
	if herr != nil {
		errs = append(errs, herr)
	}

	rv := reflect.New(r.typ).Elem()
	for _, f := range r.fields {
		raw, ok := m[f.name]
		if !ok {
			continue
		}
		k, hinted := hints[f.name]
		fv := rv.FieldByIndex(f.index)
		if k == KindUndefined || k == KindNull {
			if err := checkMarker(raw, k); err != nil {
				errs = append(errs, &FieldError{Field: f.name, Raw: raw, Kind: k, Err: err})
			}
			continue
		}
		if !hinted && (raw == UndefinedText || (raw == NullText && nullable(fv.Kind()))) {
			continue
		}
		if err := setField(fv, raw); err != nil {
			fv.Set(reflect.Zero(fv.Type()))
			errs = append(errs, &FieldError{Field: f.name, Raw: raw, Kind: k, Err: err})
		}
	}

	if r.ptr {
		return rv.Addr().Interface().(V), errs
	}
	return rv.Interface().(V), errs
}

func nullable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}

func setField(fv reflect.Value, raw string) error {
	if fv.Type() == timeType {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(t))
		return nil
	}
	switch fv.Kind() {
	case reflect.String:
		fv.SetString(raw)
	case reflect.Bool:
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(raw, 10, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetUint(u)
	case reflect.Float32, reflect.Float64:
		x, err := strconv.ParseFloat(raw, fv.Type().Bits())
		if err != nil {
			return err
		}
		fv.SetFloat(x)
	case reflect.Pointer:
		if e := fv.Type().Elem(); e.Kind() != reflect.Struct || e == timeType {
			p := reflect.New(e)
			if err := setField(p.Elem(), raw); err != nil {
				return err
			}
			fv.Set(p)
			return nil
		}
		return json.Unmarshal([]byte(raw), fv.Addr().Interface())
	default:
		return json.Unmarshal([]byte(raw), fv.Addr().Interface())
	}
	return nil
}
