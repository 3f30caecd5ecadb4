package codec

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFieldsRoundTripKeepsTypes(t *testing.T) {
	when := time.Date(2024, 3, 9, 14, 5, 7, 123000000, time.UTC)
	in := Fields{
		"name":        "Airpods",
		"looksNum":    "42",
		"looksFloat":  "4.50",
		"looksBool":   "true",
		"looksDate":   "2024-03-09T14:05:07Z",
		"looksJSON":   `{"a":1}`,
		"looksNull":   "null",
		"looksUndef":  "undefined",
		"empty":       "",
		"qty":         int64(3),
		"price":       89.99,
		"whole":       float64(5),
		"paid":        false,
		"paidAt":      when,
		"result":      nil,
		"deliveredAt": Undefined,
		"address":     map[string]any{"city": "Boston", "zip": "02110"},
		"items":       []any{map[string]any{"qty": 2.0, "name": "x"}},
	}

	flat, err := EncodeFields(in)
	if err != nil {
		t.Fatalf("EncodeFields: %v", err)
	}
	out, errs := DecodeFields(flat)
	if len(errs) != 0 {
		t.Fatalf("unexpected field errors: %v", errs)
	}
	if diff := cmp.Diff(in, out, cmp.Comparer(func(a, b undefined) bool { return true })); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeFieldsTextForms(t *testing.T) {
	when := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	flat, err := EncodeFields(Fields{
		"d": when,
		"n": 1.5,
		"b": true,
		"u": Undefined,
		"z": nil,
		"j": []string{"a"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"d": "2024-01-02T02:04:05Z",
		"n": "1.5",
		"b": "true",
		"u": "undefined",
		"z": "null",
		"j": `["a"]`,
	}
	for k, v := range want {
		if flat[k] != v {
			t.Fatalf("field %s: got %q want %q", k, flat[k], v)
		}
	}
	if _, ok := flat[HintsField]; !ok {
		t.Fatalf("missing %s", HintsField)
	}
}

func TestEncodeFieldsRejectsReservedName(t *testing.T) {
	if _, err := EncodeFields(Fields{HintsField: "x"}); !errors.Is(err, ErrReservedField) {
		t.Fatalf("expected ErrReservedField, got %v", err)
	}
}

func TestEncodeFieldsUnmarshalableNested(t *testing.T) {
	if _, err := EncodeFields(Fields{"ch": make(chan int)}); err == nil {
		t.Fatalf("expected error for channel value")
	}
}

func TestDecodeWithoutHintsSniffs(t *testing.T) {
	out, errs := DecodeFields(map[string]string{
		"u":    "undefined",
		"d":    "2023-05-01T10:00:00.000Z",
		"obj":  `{"k":"v"}`,
		"arr":  `[1,2]`,
		"null": "null",
		"i":    "-12",
		"f":    "3.25",
		"t":    "true",
		"s":    "hello",
		"q":    `"quoted"`,
		"inf":  "Infinity",
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if out["u"] != Undefined {
		t.Fatalf("u=%v", out["u"])
	}
	if d, ok := out["d"].(time.Time); !ok || !d.Equal(time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("d=%#v", out["d"])
	}
	if m, ok := out["obj"].(map[string]any); !ok || m["k"] != "v" {
		t.Fatalf("obj=%#v", out["obj"])
	}
	if a, ok := out["arr"].([]any); !ok || len(a) != 2 {
		t.Fatalf("arr=%#v", out["arr"])
	}
	if out["null"] != nil {
		t.Fatalf("null=%#v", out["null"])
	}
	if out["i"] != int64(-12) || out["f"] != 3.25 || out["t"] != true {
		t.Fatalf("scalars: i=%#v f=%#v t=%#v", out["i"], out["f"], out["t"])
	}
	if out["s"] != "hello" || out["q"] != `"quoted"` || out["inf"] != "Infinity" {
		t.Fatalf("strings: s=%#v q=%#v inf=%#v", out["s"], out["q"], out["inf"])
	}
}

func TestDecodeFaultyFieldKeepsRawAndContinues(t *testing.T) {
	flat := map[string]string{
		"qty":      "three",
		"when":     "yesterday",
		"name":     "Cable",
		"price":    "9.5",
		HintsField: `{"qty":"i","when":"t","name":"s","price":"f"}`,
	}
	out, errs := DecodeFields(flat)
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %v", len(errs), errs)
	}
	for _, fe := range errs {
		if fe.Field != "qty" && fe.Field != "when" {
			t.Fatalf("unexpected faulty field %q", fe.Field)
		}
		var ne *strconv.NumError
		if fe.Field == "qty" && !errors.As(fe, &ne) {
			t.Fatalf("qty error should unwrap to *strconv.NumError, got %T", fe.Err)
		}
	}
	if out["qty"] != "three" || out["when"] != "yesterday" {
		t.Fatalf("faulty fields should keep raw text: %v", out)
	}
	if out["name"] != "Cable" || out["price"] != 9.5 {
		t.Fatalf("healthy fields not decoded: %v", out)
	}
}

func TestDecodeNullHintWithValueIsFault(t *testing.T) {
	flat, err := EncodeFields(Fields{"a": nil, "b": Undefined, "c": "ok"})
	if err != nil {
		t.Fatal(err)
	}
	flat["a"] = "[{broken"
	flat["b"] = "garbage"

	out, errs := DecodeFields(flat)
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %v", errs)
	}
	if out["a"] != "[{broken" || out["b"] != "garbage" {
		t.Fatalf("faulty fields should keep raw text: %v", out)
	}
	if out["c"] != "ok" {
		t.Fatalf("healthy field lost: %v", out)
	}
}

func TestDecodeCorruptHintsFallsBackToSniffing(t *testing.T) {
	out, errs := DecodeFields(map[string]string{
		"n":        "7",
		HintsField: "{not json",
	})
	if len(errs) != 1 || errs[0].Field != HintsField {
		t.Fatalf("expected one hints error, got %v", errs)
	}
	if out["n"] != int64(7) {
		t.Fatalf("n=%#v", out["n"])
	}
	if _, ok := out[HintsField]; ok {
		t.Fatalf("hints field must not leak into the record")
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	out, errs := DecodeFields(map[string]string{"x": "1", HintsField: `{"x":"?"}`})
	if len(errs) != 1 || out["x"] != "1" {
		t.Fatalf("got out=%v errs=%v", out, errs)
	}
}

func TestLargeUnsignedSurvives(t *testing.T) {
	in := Fields{"big": uint64(1<<64 - 1)}
	flat, err := EncodeFields(in)
	if err != nil {
		t.Fatal(err)
	}
	out, errs := DecodeFields(flat)
	if len(errs) != 0 || out["big"] != uint64(1<<64-1) {
		t.Fatalf("big=%#v errs=%v", out["big"], errs)
	}
}
