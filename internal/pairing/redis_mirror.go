package pairing

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
)

// RedisMirror mirrors active pair codes to Redis with a matching EXPIRE, so
// a process restart doesn't resurrect a code the in-memory table forgot
// about but Redis (and thus any other process) still considers live.
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(addr, password string, db int) *RedisMirror {
	return &RedisMirror{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func mirrorKey(code string) string { return "pairing:code:" + code }

// Mirror records a freshly issued code, keyed by the code with its channel
// id as the value, with a TTL matching the registry's own expiry.
func (m *RedisMirror) Mirror(code, channelID string, ttl time.Duration) error {
	if err := m.client.Set(mirrorKey(code), channelID, ttl).Err(); err != nil {
		return fmt.Errorf("pairing: mirror code to redis: %w", err)
	}
	return nil
}

// Active reports whether Redis still considers code live, independent of
// this process's in-memory table.
func (m *RedisMirror) Active(code string) (bool, error) {
	n, err := m.client.Exists(mirrorKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("pairing: check code in redis: %w", err)
	}
	return n > 0, nil
}

// Forget removes the mirrored entry once a code is consumed, so a GC sweep
// elsewhere doesn't need to wait out the TTL to see it gone.
func (m *RedisMirror) Forget(code string) error {
	if err := m.client.Del(mirrorKey(code)).Err(); err != nil {
		return fmt.Errorf("pairing: forget code in redis: %w", err)
	}
	return nil
}

func (m *RedisMirror) Close() error { return m.client.Close() }
