//go:build integration

package testutil

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
)

// ReadEntry reads a hash entry ("table|key") from the given Redis DB.
func ReadEntry(t *testing.T, client *redis.Client, table, key string) map[string]string {
	t.Helper()

	redisKey := table + "|" + key
	vals, err := client.HGetAll(context.Background(), redisKey).Result()
	if err != nil {
		t.Fatalf("reading %s: %v", redisKey, err)
	}
	return vals
}

// EntryExists checks if a key exists in the given Redis DB.
func EntryExists(t *testing.T, client *redis.Client, table, key string) bool {
	t.Helper()

	redisKey := table + "|" + key
	n, err := client.Exists(context.Background(), redisKey).Result()
	if err != nil {
		t.Fatalf("checking existence of %s: %v", redisKey, err)
	}
	return n > 0
}
