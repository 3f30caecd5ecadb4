package genstore

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type localGen struct {
	gen     uint64
	touched time.Time
}

// Local keeps generations in-process. With a positive cleanup interval and
// retention, a background loop prunes entries not bumped within retention;
// a pruned key reads as generation 0, which at worst rejects one cache write.
type Local struct {
	gens *xsync.MapOf[string, localGen]
	now  func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

var _ GenStore = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{gens: xsync.NewMapOf[string, localGen](), now: time.Now}
	if cleanupInterval > 0 && retention > 0 {
		s.stop = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			t := time.NewTicker(cleanupInterval)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					s.Cleanup(retention)
				case <-s.stop:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Snapshot(_ context.Context, k string) (uint64, error) {
	e, _ := s.gens.Load(k)
	return e.gen, nil
}

func (s *Local) Bump(_ context.Context, k string) (uint64, error) {
	now := s.now()
	e, _ := s.gens.Compute(k, func(old localGen, _ bool) (localGen, bool) {
		return localGen{gen: old.gen + 1, touched: now}, false
	})
	return e.gen, nil
}

// Cleanup drops counters not bumped within retention.
func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention)
	s.gens.Range(func(k string, e localGen) bool {
		if e.touched.Before(cutoff) {
			s.gens.Compute(k, func(cur localGen, loaded bool) (localGen, bool) {
				return cur, loaded && cur.touched.Before(cutoff)
			})
		}
		return true
	})
}

func (s *Local) Close(context.Context) error {
	s.once.Do(func() {
		if s.stop != nil {
			close(s.stop)
			s.wg.Wait()
		}
	})
	return nil
}
