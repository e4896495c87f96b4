package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func revokedKey(jti string) string { return "auth:revoked:" + jti }

func lockKey(name string) string { return "lock:" + name }

// RevokeToken blacklists a token id until the token would have expired anyway.
func (s *Store) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, revokedKey(jti), 1, ttl).Err()
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := s.rdb.Get(ctx, revokedKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TryLock takes a best-effort named lock for ttl. The returned release only
// deletes the key if this holder still owns it.
func (s *Store) TryLock(ctx context.Context, name, owner string, ttl time.Duration) (release func(context.Context) error, ok bool, err error) {
	ok, err = s.rdb.SetNX(ctx, lockKey(name), owner, ttl).Result()
	if err != nil || !ok {
		return nil, ok, err
	}
	release = func(ctx context.Context) error {
		return releaseScript.Run(ctx, s.rdb, []string{lockKey(name)}, owner).Err()
	}
	return release, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
