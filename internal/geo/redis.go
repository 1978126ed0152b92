package geo

import (
	"context"
	"fmt"
	"slices"

	"github.com/JonMunkholm/customermatch/internal/core"
	"github.com/redis/go-redis/v9"
)

// RedisSource keeps one set of zips per place under "zip:{country}:{state}:{city}".
type RedisSource struct {
	client *redis.Client
}

// NewRedisSource wraps a client.
func NewRedisSource(client *redis.Client) *RedisSource {
	return &RedisSource{client: client}
}

// OpenRedis connects to addr and checks the connection.
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisSource{client: client}, nil
}

func redisKey(k core.PlaceKey) string {
	return "zip:" + k.Country + ":" + k.State + ":" + k.City
}

func (s *RedisSource) Lookup(ctx context.Context, key core.PlaceKey) ([]string, error) {
	zips, err := s.client.SMembers(ctx, redisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", redisKey(key), err)
	}
	slices.Sort(zips)
	return zips, nil
}

// Load adds entries in a single pipeline.
func (s *RedisSource) Load(ctx context.Context, entries []Entry) (int, error) {
	pipe := s.client.Pipeline()
	var cmds []*redis.IntCmd
	for _, e := range entries {
		if !e.valid() {
			continue
		}
		cmds = append(cmds, pipe.SAdd(ctx, redisKey(e.Key()), e.Zip))
	}
	if len(cmds) == 0 {
		return 0, nil
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("load zips: %w", err)
	}

	n := 0
	for _, c := range cmds {
		n += int(c.Val())
	}
	return n, nil
}

func (s *RedisSource) Close() error {
	return s.client.Close()
}
