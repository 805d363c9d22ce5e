package routing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"field-route-service/internal/ports"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type cachedRoute struct {
	Legs []ports.LegResult `json:"legs"`
}

// CachedProvider caches complete route results in Redis. Coordinate
// locations are keyed at 4-decimal precision so nearby live fixes share
// an entry; the TTL bounds how stale a traffic estimate can get.
// Redis failures fall through to the wrapped provider.
type CachedProvider struct {
	next   ports.RoutingProvider
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCachedProvider(next ports.RoutingProvider, client *redis.Client, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProvider{
		next:   next,
		client: client,
		prefix: "fieldroute:",
		ttl:    ttl,
	}
}

func (c *CachedProvider) key(req ports.RouteRequest) string {
	path := req.Path()
	parts := make([]string, 0, len(path))
	for _, loc := range path {
		parts = append(parts, loc.Key())
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%sroute:%s:%s", c.prefix, req.Mode, hex.EncodeToString(sum[:16]))
}

func (c *CachedProvider) Route(ctx context.Context, req ports.RouteRequest) (ports.RouteResult, error) {
	key := c.key(req)

	b, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cr cachedRoute
		if err := json.Unmarshal(b, &cr); err == nil {
			return ports.RouteResult{Legs: cr.Legs, Status: StatusCached}, nil
		}
		log.Printf("route cache decode failed key=%s err=%v", key, err)
	case errors.Is(err, redis.Nil):
	default:
		log.Printf("route cache get failed key=%s err=%v", key, err)
	}

	res, err := c.next.Route(ctx, req)
	if err != nil {
		return res, err
	}

	payload, err := json.Marshal(cachedRoute{Legs: res.Legs})
	if err != nil {
		log.Printf("route cache encode failed key=%s err=%v", key, err)
		return res, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		log.Printf("route cache set failed key=%s err=%v", key, err)
	}

	return res, nil
}
