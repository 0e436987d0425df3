package instance

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Discover lists the instance names that own at least one key on the Redis server.
// Keys follow hri:{instance}:{entity}...; anything else is ignored.
func Discover(ctx context.Context, rdb *redis.Client) ([]string, error) {
	seen := make(map[string]bool)
	iter := rdb.Scan(ctx, 0, "hri:*", 100).Iterator()
	for iter.Next(ctx) {
		parts := strings.SplitN(iter.Val(), ":", 3)
		if len(parts) < 3 || ValidateName(parts[1]) != nil {
			continue
		}
		seen[parts[1]] = true
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan instance keys: %w", err)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
