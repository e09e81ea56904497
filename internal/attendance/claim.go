package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer makes the first check-in of a guest win across stations sharing a backend.
// Claim returns the winning entry and whether it is the one passed in.
type Claimer interface {
	Claim(ctx context.Context, entry RegisteredGuest) (RegisteredGuest, bool, error)
}

// LocalClaimer is used by single-process deployments; the ledger lock is enough.
type LocalClaimer struct{}

func (LocalClaimer) Claim(_ context.Context, entry RegisteredGuest) (RegisteredGuest, bool, error) {
	return entry, true, nil
}

// RedisClaimer stores the winning entry under a per-guest key with SET NX.
type RedisClaimer struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisClaimer creates a claimer; ttl bounds how long claims outlive the event.
func NewRedisClaimer(client *redis.Client, prefix string, ttl time.Duration) *RedisClaimer {
	if prefix == "" {
		prefix = "checkin:claim:"
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisClaimer{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisClaimer) Claim(ctx context.Context, entry RegisteredGuest) (RegisteredGuest, bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return RegisteredGuest{}, false, err
	}
	key := c.prefix + entry.ID
	ok, err := c.client.SetNX(ctx, key, payload, c.ttl).Result()
	if err != nil {
		return RegisteredGuest{}, false, fmt.Errorf("claim %s: %w", entry.ID, err)
	}
	if ok {
		return entry, true, nil
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return RegisteredGuest{}, false, fmt.Errorf("read claim %s: %w", entry.ID, err)
	}
	var winner RegisteredGuest
	if err := json.Unmarshal(raw, &winner); err != nil {
		return RegisteredGuest{}, false, fmt.Errorf("decode claim %s: %w", entry.ID, err)
	}
	return winner, false, nil
}
