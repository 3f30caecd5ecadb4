package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"time"
)

// Flat (hash) encoding.
//
// A record is flattened into field -> string so it can live in a cache hash.
// Every field's kind is written alongside under HintsField, so decoding is
// exact even when a string looks like a number, a bool, a date or JSON.
// Entries written without hints are decoded by lexical sniffing, in order:
// undefined sentinel, ISO-8601 date, JSON object/array/null, number, bool,
// raw string.

// Kind tags the type of a flattened value.
type Kind string

const (
	KindString    Kind = "s"
	KindInt       Kind = "i"
	KindFloat     Kind = "f"
	KindBool      Kind = "b"
	KindTime      Kind = "t"
	KindJSON      Kind = "j"
	KindNull      Kind = "n"
	KindUndefined Kind = "u"
)

const (
	// HintsField is reserved; it holds a JSON object of field -> Kind.
	HintsField    = "__kinds"
	UndefinedText = "undefined"
	NullText      = "null"
)

var ErrReservedField = errors.New("codec: field name " + HintsField + " is reserved")

type undefined struct{}

func (undefined) String() string { return UndefinedText }

// Undefined marks a field that is present in the record but has no value.
var Undefined = undefined{}

// Fields is a dynamic record. Leaf values are string, int64, uint64, float64,
// bool, time.Time, nil, Undefined, or any JSON-marshalable structure.
type Fields map[string]any

// FieldError reports a single field that could not be decoded. Decoding of
// the other fields is unaffected.
type FieldError struct {
	Field string
	Raw   string
	Kind  Kind
	Err   error
}

func (e *FieldError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("codec: field %q (%s): %v", e.Field, e.Kind, e.Err)
	}
	return fmt.Sprintf("codec: field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

var (
	isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)
	numeric = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?$`)
)

// EncodeFields flattens f. The only error sources are a reserved field name
// and a nested value that cannot be marshaled to JSON.
func EncodeFields(f Fields) (map[string]string, error) {
	out := make(map[string]string, len(f)+1)
	hints := make(map[string]Kind, len(f))
	for name, v := range f {
		if name == HintsField {
			return nil, ErrReservedField
		}
		s, k, err := encodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("codec: field %q: %w", name, err)
		}
		out[name] = s
		hints[name] = k
	}
	hb, err := json.Marshal(hints)
	if err != nil {
		return nil, err
	}
	out[HintsField] = string(hb)
	return out, nil
}

func encodeValue(v any) (string, Kind, error) {
	switch x := v.(type) {
	case undefined:
		return UndefinedText, KindUndefined, nil
	case nil:
		return NullText, KindNull, nil
	case string:
		return x, KindString, nil
	case bool:
		return strconv.FormatBool(x), KindBool, nil
	case int:
		return strconv.FormatInt(int64(x), 10), KindInt, nil
	case int8:
		return strconv.FormatInt(int64(x), 10), KindInt, nil
	case int16:
		return strconv.FormatInt(int64(x), 10), KindInt, nil
	case int32:
		return strconv.FormatInt(int64(x), 10), KindInt, nil
	case int64:
		return strconv.FormatInt(x, 10), KindInt, nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), KindInt, nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), KindInt, nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), KindInt, nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), KindInt, nil
	case uint64:
		return strconv.FormatUint(x, 10), KindInt, nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), KindFloat, nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), KindFloat, nil
	case time.Time:
		return formatTime(x), KindTime, nil
	case *time.Time:
		if x == nil {
			return NullText, KindNull, nil
		}
		return formatTime(*x), KindTime, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return NullText, KindNull, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", "", err
	}
	return string(b), KindJSON, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// DecodeFields rebuilds a record from its flat form. It never fails as a
// whole: a field that cannot be decoded keeps its raw string and is reported.
func DecodeFields(m map[string]string) (Fields, []*FieldError) {
	var errs []*FieldError
	hints, herr := parseHints(m)
	if herr != nil {
		errs = append(errs, herr)
	}

	out := make(Fields, len(m))
	for name, raw := range m {
		if name == HintsField {
			continue
		}
		k, hinted := hints[name]
		var (
			v   any
			err error
		)
		if hinted {
			v, err = decodeHinted(raw, k)
		} else {
			v, err = sniff(raw)
		}
		if err != nil {
			errs = append(errs, &FieldError{Field: name, Raw: raw, Kind: k, Err: err})
			v = raw
		}
		out[name] = v
	}
	return out, errs
}

func parseHints(m map[string]string) (map[string]Kind, *FieldError) {
	raw, ok := m[HintsField]
	if !ok {
		return nil, nil
	}
	var hints map[string]Kind
	if err := json.Unmarshal([]byte(raw), &hints); err != nil {
		return nil, &FieldError{Field: HintsField, Raw: raw, Err: err}
	}
	return hints, nil
}

// checkMarker rejects a null or undefined hint whose value is not the
// matching marker text.
func checkMarker(raw string, k Kind) error {
	want := NullText
	if k == KindUndefined {
		want = UndefinedText
	}
	if raw != want {
		return fmt.Errorf("kind %q expects %q, got %q", k, want, raw)
	}
	return nil
}

func decodeHinted(raw string, k Kind) (any, error) {
	switch k {
	case KindString:
		return raw, nil
	case KindUndefined:
		if err := checkMarker(raw, k); err != nil {
			return nil, err
		}
		return Undefined, nil
	case KindNull:
		if err := checkMarker(raw, k); err != nil {
			return nil, err
		}
		return nil, nil
	case KindBool:
		return parseBool(raw)
	case KindInt:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		return strconv.ParseUint(raw, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(raw, 64)
	case KindTime:
		return time.Parse(time.RFC3339Nano, raw)
	case KindJSON:
		return parseJSON(raw)
	default:
		return nil, fmt.Errorf("unknown kind %q", k)
	}
}

func sniff(raw string) (any, error) {
	switch {
	case raw == UndefinedText:
		return Undefined, nil
	case isoDate.MatchString(raw):
		return time.Parse(time.RFC3339Nano, raw)
	case raw == NullText:
		return nil, nil
	case len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') && json.Valid([]byte(raw)):
		return parseJSON(raw)
	case numeric.MatchString(raw):
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i, nil
		}
		return strconv.ParseFloat(raw, 64)
	case raw == "true":
		return true, nil
	case raw == "false":
		return false, nil
	}
	return raw, nil
}

func parseBool(raw string) (bool, error) {
	switch raw {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", raw)
}

func parseJSON(raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, err
	}
	return v, nil
}
