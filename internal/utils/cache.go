package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Matching redis.Nil
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// WalletKey is the cache key of a wallet balance
func WalletKey(communityID, userID string) string {
	return "wallet:community:" + communityID + ":user:" + userID
}

// RulesKey is the cache key of a community's permission rules
func RulesKey(communityID string) string {
	return "rules:community:" + communityID
}

// IdempotencyKey is the key holding an in-flight claim on a caller supplied key
func IdempotencyKey(key string) string {
	return "idem:" + key
}

// GetCache retrieves a value from Redis and unmarshals it into dest
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, keys ...string) error {
	return rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// ClaimKey takes an exclusive claim on key for ttl. It returns false when
// another request already holds it.
func ClaimKey(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, time.Now().UnixMilli(), ttl).Result() // Only set if absent
}

// ReleaseKey drops a claim taken with ClaimKey
func ReleaseKey(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}
