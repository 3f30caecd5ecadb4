package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/shopcache/model"
	"github.com/unkn0wn-root/shopcache/recordstore"
)

func TestSaveAssignsIDAndStamps(t *testing.T) {
	ctx := context.Background()
	r := New[*model.Product]()

	p, err := r.Save(ctx, &model.Product{Name: "Mouse", Price: 19.99, CountInStock: 4})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if p.ID == "" {
		t.Fatalf("expected assigned id")
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps, got %v / %v", p.CreatedAt, p.UpdatedAt)
	}

	got, err := r.FindByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Fatalf("stored record mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreDoesNotAliasCallerMemory(t *testing.T) {
	ctx := context.Background()
	r := New[*model.Product]()

	p, _ := r.Save(ctx, &model.Product{Name: "Mouse", CountInStock: 4})
	p.CountInStock = 0 // not saved

	got, _ := r.FindByID(ctx, p.ID)
	if got.CountInStock != 4 {
		t.Fatalf("store aliased caller value: stock=%d", got.CountInStock)
	}
}

func TestMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	r := New[*model.User]()

	if _, err := r.FindByID(ctx, "nope"); !errors.Is(err, recordstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	u, _ := r.Save(ctx, &model.User{Name: "Ada", Email: "ada@example.com"})
	if err := r.DeleteByID(ctx, u.ID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if err := r.DeleteByID(ctx, u.ID); !errors.Is(err, recordstore.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("Len=%d want 0", r.Len())
	}
}

func TestFindFiltersInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	r := New[*model.Order]()

	for _, u := range []string{"u1", "u2", "u1", "u1"} {
		if _, err := r.Save(ctx, &model.Order{User: u}); err != nil {
			t.Fatal(err)
		}
	}
	all, err := r.Find(ctx, nil)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Find(all)=%d want 4", len(all))
	}

	mine, err := r.Find(ctx, recordstore.Filter{"user": "u1"})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("Find(user=u1)=%d want 3", len(mine))
	}
	if mine[0].ID != all[0].ID || mine[1].ID != all[2].ID || mine[2].ID != all[3].ID {
		t.Fatalf("Find did not keep insertion order")
	}

	// re-saving keeps the original position
	mine[0].IsPaid = true
	if _, err := r.Save(ctx, mine[0]); err != nil {
		t.Fatal(err)
	}
	again, _ := r.Find(ctx, recordstore.Filter{"user": "u1"})
	if again[0].ID != mine[0].ID || !again[0].IsPaid {
		t.Fatalf("update moved record or was lost: %+v", again[0])
	}
	paid, _ := r.Find(ctx, recordstore.Filter{"isPaid": "true"})
	if len(paid) != 1 {
		t.Fatalf("Find(isPaid=true)=%d want 1", len(paid))
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New[*model.User]()
	if _, err := r.Save(ctx, &model.User{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
