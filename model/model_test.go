package model

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestRerate(t *testing.T) {
	p := &Product{Rating: 3, NumReviews: 9}
	p.Rerate()
	if p.Rating != 0 || p.NumReviews != 0 {
		t.Fatalf("empty reviews: rating=%v n=%d", p.Rating, p.NumReviews)
	}

	p.Reviews = []Review{{User: "u1", Rating: 5}, {User: "u2", Rating: 4}, {User: "u3", Rating: 3}}
	p.Rerate()
	if p.Rating != 4 || p.NumReviews != 3 {
		t.Fatalf("rating=%v n=%d, want 4 and 3", p.Rating, p.NumReviews)
	}
	if !p.ReviewedBy("u2") || p.ReviewedBy("u9") {
		t.Fatalf("ReviewedBy mismatch")
	}
}

func TestOrderProductIDsAndQuantities(t *testing.T) {
	o := &Order{OrderItems: []OrderItem{
		{Product: "b", Qty: 1},
		{Product: "a", Qty: 2},
		{Product: "b", Qty: 3},
	}}
	if diff := cmp.Diff([]string{"b", "a"}, o.ProductIDs()); diff != "" {
		t.Fatalf("ProductIDs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]int{"a": 2, "b": 4}, o.Quantities()); diff != "" {
		t.Fatalf("Quantities (-want +got):\n%s", diff)
	}
}

func TestStampKeepsCreatedAt(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, loc)
	u := &User{}
	u.Stamp(t0)
	if !u.CreatedAt.Equal(t0) || u.CreatedAt.Location() != time.UTC {
		t.Fatalf("created=%v", u.CreatedAt)
	}
	t1 := t0.Add(time.Hour)
	u.Stamp(t1)
	if !u.CreatedAt.Equal(t0) || !u.UpdatedAt.Equal(t1) {
		t.Fatalf("created=%v updated=%v", u.CreatedAt, u.UpdatedAt)
	}
}
