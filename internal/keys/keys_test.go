package keys

import "testing"

func TestKeys(t *testing.T) {
	cases := map[string]string{
		Entity("product", "p1"):              "product:p1",
		Lock("product", "p1"):                "locks:product:p1",
		Members(RankIndex):                   "productsSortedByRating:members",
		Seq(RankIndex):                       "productsSortedByRating:seq",
		Single("orders", "all"):              "single:orders:all",
		NormalizeEmail("  Ada@Example.COM "): "ada@example.com",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
}
