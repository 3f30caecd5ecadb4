package shopcache

import (
	"context"
	"errors"
	"testing"

	"github.com/unkn0wn-root/shopcache/internal/keys"
	"github.com/unkn0wn-root/shopcache/model"
)

func TestRegisterUserEmailUnique(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	u, err := h.shop.RegisterUser(ctx, &model.User{Name: "Jane", Email: " Jane@Example.com "})
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if u.Email != "jane@example.com" {
		t.Fatalf("email=%q", u.Email)
	}
	if _, err := h.shop.RegisterUser(ctx, &model.User{Name: "J2", Email: "JANE@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	// the set is only a cache: losing it must not allow duplicates
	if err := h.cache.Del(ctx, keys.Emails); err != nil {
		t.Fatal(err)
	}
	if _, err := h.shop.RegisterUser(ctx, &model.User{Name: "J3", Email: "jane@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("after set loss: %v", err)
	}
	if ok, _ := h.cache.SIsMember(ctx, keys.Emails, "jane@example.com"); !ok {
		t.Fatal("email set not repaired")
	}

	h.cache.fail("SIsMember")
	ok, err := h.shop.EmailRegistered(ctx, "jane@example.com")
	if err != nil || !ok {
		t.Fatalf("with set down: ok=%v err=%v", ok, err)
	}
}

func TestRegisterUserValidation(t *testing.T) {
	h := newHarness(t, nil)
	for _, u := range []*model.User{nil, {Email: "a@b.c"}, {Name: "x", Email: "not-an-email"}} {
		if _, err := h.shop.RegisterUser(context.Background(), u); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%+v: got %v", u, err)
		}
	}
}

func TestUpdateUserMovesEmail(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	a, _ := h.shop.RegisterUser(ctx, &model.User{Name: "A", Email: "a@example.com"})
	if _, err := h.shop.RegisterUser(ctx, &model.User{Name: "B", Email: "b@example.com"}); err != nil {
		t.Fatal(err)
	}

	taken := "b@example.com"
	if _, err := h.shop.UpdateUser(ctx, a.ID, UserUpdate{Email: &taken}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("got %v", err)
	}

	fresh := "new@example.com"
	name := "Alice"
	u, err := h.shop.UpdateUser(ctx, a.ID, UserUpdate{Email: &fresh, Name: &name})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if u.Email != fresh || u.Name != "Alice" {
		t.Fatalf("u=%+v", u)
	}
	if ok, _ := h.shop.EmailRegistered(ctx, "a@example.com"); ok {
		t.Fatal("old email still registered")
	}
	cached, err := h.shop.GetUser(ctx, a.ID)
	if err != nil || cached.Email != fresh {
		t.Fatalf("cached=%+v err=%v", cached, err)
	}
}

func TestDeleteUser(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	admin, _ := h.shop.RegisterUser(ctx, &model.User{Name: "Admin", Email: "admin@example.com", IsAdmin: true})
	u, _ := h.shop.RegisterUser(ctx, &model.User{Name: "U", Email: "u@example.com"})

	if err := h.shop.DeleteUser(ctx, admin.ID); !errors.Is(err, ErrAdminUser) {
		t.Fatalf("got %v", err)
	}
	if err := h.shop.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if _, err := h.shop.GetUser(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUser after delete: %v", err)
	}
	if ok, _ := h.shop.EmailRegistered(ctx, "u@example.com"); ok {
		t.Fatal("email still registered")
	}
}

func TestListUsers(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	got, err := h.shop.ListUsers(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty: %v err=%v", got, err)
	}
	for _, e := range []string{"a@example.com", "b@example.com"} {
		if _, err := h.shop.RegisterUser(ctx, &model.User{Name: e, Email: e}); err != nil {
			t.Fatal(err)
		}
	}
	got, err = h.shop.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, u := range got {
		seen[u.Email] = true
	}
	if len(got) != 2 || !seen["a@example.com"] || !seen["b@example.com"] {
		t.Fatalf("got %v", got)
	}
}
