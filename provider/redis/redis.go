package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/shopcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ pr.Provider = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}, nil
}

// Client exposes the underlying client, e.g. for a shared genstore.
func (p *Redis) Client() goredis.UniversalClient { return p.rdb }

func (p *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return p.rdb.HGetAll(ctx, key).Result()
}

// HReplace runs DEL + HSET (+ PEXPIRE) in one MULTI so readers never observe
// a mix of old and new fields.
func (p *Redis) HReplace(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	_, err := p.rdb.TxPipelined(ctx, func(tx goredis.Pipeliner) error {
		tx.Del(ctx, key)
		if len(fields) == 0 {
			return nil
		}
		tx.HSet(ctx, key, fields)
		if ttl > 0 {
			tx.PExpire(ctx, key, ttl)
		}
		return nil
	})
	return err
}

func (p *Redis) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := p.rdb.HGet(ctx, key, field).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (p *Redis) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	return p.rdb.HSetNX(ctx, key, field, value).Result()
}

func (p *Redis) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return p.rdb.HDel(ctx, key, fields...).Err()
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 0 // no expiry
	}
	return p.rdb.Set(ctx, key, value, ttl).Err()
}

func (p *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0
	}
	return p.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (p *Redis) Incr(ctx context.Context, key string) (int64, error) {
	return p.rdb.Incr(ctx, key).Result()
}

func (p *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return p.rdb.Del(ctx, keys...).Err()
}

func (p *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return p.rdb.SAdd(ctx, key, toArgs(members)...).Err()
}

func (p *Redis) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return p.rdb.SRem(ctx, key, toArgs(members)...).Err()
}

func (p *Redis) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return p.rdb.SIsMember(ctx, key, member).Result()
}

func (p *Redis) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return p.rdb.ZAdd(ctx, key, goredis.Z{Score: score, Member: member}).Err()
}

func (p *Redis) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return p.rdb.ZRem(ctx, key, toArgs(members)...).Err()
}

func (p *Redis) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return p.rdb.ZRange(ctx, key, start, stop).Result()
}

func (p *Redis) ZCard(ctx context.Context, key string) (int64, error) {
	return p.rdb.ZCard(ctx, key).Result()
}

// Close releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func toArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
