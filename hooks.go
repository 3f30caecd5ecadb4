package shopcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on request paths.
type Hooks interface {
	// A cache read failed and the record store served the request.
	CacheFallback(key string, err error)

	// Writing or deleting a cache entry failed after the record store write
	// succeeded. The entry may be stale until the next write or miss.
	MirrorFailed(key string, err error)

	// One field of a cached entry did not decode. The rest of the entry was used.
	DecodeFault(key, field string, err error)

	// A lock could not be taken (held elsewhere or store unreachable).
	LockContended(resource string, err error)

	// The rating index could not be updated for a product.
	IndexUpdateFailed(productID string, err error)

	// A collection entry was deleted on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	CollectionSelfHeal(storageKey, reason string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) CacheFallback(string, error)       {}
func (NopHooks) MirrorFailed(string, error)        {}
func (NopHooks) DecodeFault(string, string, error) {}
func (NopHooks) LockContended(string, error)       {}
func (NopHooks) IndexUpdateFailed(string, error)   {}
func (NopHooks) CollectionSelfHeal(string, string) {}
