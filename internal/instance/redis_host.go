package instance

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPort is the port assumed when no Redis URL is configured.
const DefaultRedisPort = 6379

// GetRedisHost returns the appropriate Redis hostname for the current environment.
// In Docker-in-Docker scenarios, it returns "host.docker.internal" to access
// the host's published ports. Otherwise, it returns "localhost".
func GetRedisHost() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// GetRedisURL constructs the full Redis URL for a given port.
func GetRedisURL(port int) string {
	return fmt.Sprintf("redis://%s:%d", GetRedisHost(), port)
}

// RedisOptions parses url into client options. An empty url means the
// default port on GetRedisHost.
func RedisOptions(url string) (*redis.Options, error) {
	if url == "" {
		url = GetRedisURL(DefaultRedisPort)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL %q: %w", url, err)
	}
	return opts, nil
}
