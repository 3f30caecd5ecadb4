package codec

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/shopcache/model"
)

func TestByteCodecsRoundTripOrderList(t *testing.T) {
	list := []*model.Order{sampleOrder(), {ID: "o2", User: "u2"}}

	codecs := map[string]Codec[[]*model.Order]{
		"json":    JSON[[]*model.Order]{},
		"msgpack": Msgpack[[]*model.Order]{},
		"cbor":    MustCBOR[[]*model.Order](true),
	}
	for name, c := range codecs {
		b, err := c.Encode(list)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		got, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if diff := cmp.Diff(list, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestMsgpackUsesJSONNames(t *testing.T) {
	b, err := Msgpack[model.OrderItem]{}.Encode(model.OrderItem{Product: "p1", Qty: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "product") || strings.Contains(string(b), "Product") {
		t.Fatalf("expected json field names in payload: %q", b)
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	c := Limit[[]*model.Order]{Inner: JSON[[]*model.Order]{}, MaxDecode: 8}
	b, err := c.Encode([]*model.Order{{ID: "a-long-order-id"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Decode(b); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}

	c.MaxDecode = 0
	if got, err := c.Decode(b); err != nil || len(got) != 1 {
		t.Fatalf("limit disabled: got=%v err=%v", got, err)
	}
}
