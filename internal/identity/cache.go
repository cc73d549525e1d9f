package identity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func cacheKey(id string) string {
	return "identity:user:" + id
}

// CachedDirectory 在 Redis 中缓存按 ID 查询到的用户资料。
// Redis 不可用时直接回源，不影响请求结果。
type CachedDirectory struct {
	next   Directory
	client redis.Cmdable
	ttl    time.Duration
	log    zerolog.Logger
}

func NewCachedDirectory(next Directory, client redis.Cmdable, ttl time.Duration, logger zerolog.Logger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedDirectory{next: next, client: client, ttl: ttl, log: logger}
}

func (d *CachedDirectory) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u, err := d.next.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	d.store(ctx, []User{*u})
	return u, nil
}

// GetUsers 先批量读取缓存，只对未命中的 ID 回源，结果按传入顺序返回。
func (d *CachedDirectory) GetUsers(ctx context.Context, ids []string) ([]User, error) {
	ids = UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxLookupIDs {
		return nil, ErrTooManyIDs
	}
	found := make(map[string]User, len(ids))
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(id)
	}

	vals, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		d.log.Warn().Err(err).Msg("user cache read")
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var u User
		if err := json.Unmarshal([]byte(s), &u); err == nil {
			found[ids[i]] = u
		}
	}

	var misses []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			misses = append(misses, id)
		}
	}
	if len(misses) > 0 {
		fetched, err := d.next.GetUsers(ctx, misses)
		if err != nil {
			return nil, err
		}
		for _, u := range fetched {
			found[u.ID] = u
		}
		d.store(ctx, fetched)
	}

	out := make([]User, 0, len(found))
	for _, id := range ids {
		if u, ok := found[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *CachedDirectory) store(ctx context.Context, users []User) {
	if len(users) == 0 {
		return
	}
	pipe := d.client.Pipeline()
	for _, u := range users {
		b, err := json.Marshal(u)
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKey(u.ID), b, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.log.Warn().Err(err).Int("users", len(users)).Msg("user cache write")
	}
}
