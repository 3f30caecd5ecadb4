// Package shopcache keeps a shared Redis-style cache consistent with an
// authoritative record store for a small storefront: products, orders and
// users.
//
// Components:
//   - RecordCache[V]: read-through entity cache. Entries are flat hashes at
//     <kind>:<id>, fully overwritten after every record-store write.
//   - Locker: SET NX PX resource locks; multi-resource acquisition is sorted
//     so overlapping settlements cannot deadlock.
//   - RankIndex: products ordered by rating in a sorted set with an
//     insertion-order tiebreak.
//   - collection[V]: whole-value list cache with compare-and-swap safety via
//     per-key generations (see genstore).
//   - Shop: the operations exposed to request handlers, including order
//     settlement.
//
// The record store is always authoritative. Cache faults are logged and
// reported through Hooks; they never fail an operation whose record-store
// write succeeded.
//
// CAS pattern for collections:
//
//	obs := gen.Snapshot(k) // before the record-store read
//	v   := readFromStore(k)
//	_   = setWithGen(k, v, obs) // written iff current gen == obs
package shopcache
