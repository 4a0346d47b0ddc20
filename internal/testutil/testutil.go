// Package testutil provides testing utilities and helpers shared across CityCycle packages.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestingTB is an interface that covers both *testing.T and *testing.B.
type TestingTB interface {
	Helper()
	Skip(args ...interface{})
	Skipf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

const (
	redisPingTimeout = 2 * time.Second
	// dbLockTTL outlives any single package's test run.
	dbLockTTL   = 30 * time.Minute
	dbLockKey   = "citycycle:testutil:db_lock:%d"
	firstTestDB = 1
	lastTestDB  = 15
)

// envBool parses common truthy values from env vars.
func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

// redisRequired turns a missing Redis into a failure instead of a skip (CI).
func redisRequired() bool { return envBool("TEST_REQUIRE_REDIS") || envBool("TEST_REQUIRE_INFRA") }

// TestTime returns a fixed time for testing.
func TestTime() time.Time {
	return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// Ptr returns a pointer to v, for optional fields such as profile updates.
func Ptr[T any](v T) *T { return &v }

// redisCandidates lists addresses to probe, most specific first: REDIS_ADDR, the compose
// service name, a local default port, and the repo's docker test port.
func redisCandidates() []string {
	var out []string
	if addr := strings.TrimSpace(os.Getenv("REDIS_ADDR")); addr != "" {
		out = append(out, addr)
	}
	return append(out, "redis:6379", "localhost:6379", "localhost:56379")
}

func pingRedis(addr string) error {
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}

// findRedis returns the first reachable candidate address.
func findRedis(t TestingTB) (string, bool) {
	t.Helper()
	for _, addr := range redisCandidates() {
		err := pingRedis(addr)
		if err == nil {
			return addr, true
		}
		t.Logf("Redis not available at %s: %v", addr, err)
	}
	return "", false
}

// selectTestRedisDB picks a logical DB so packages running in parallel do not flush each other.
// TEST_REDIS_DB wins when set; otherwise a DB in [1..15] is reserved with a lock key in DB 0,
// which FlushDB on the test DB never touches. Falls back to DB 1.
func selectTestRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("Invalid TEST_REDIS_DB=%q, falling back to auto-select", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	defer meta.Close()

	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for db := firstTestDB; db <= lastTestDB; db++ {
		key := fmt.Sprintf(dbLockKey, db)
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		ok, err := meta.SetNX(ctx, key, owner, dbLockTTL).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		releaseOnCleanup(t, addr, key)
		return db
	}

	t.Logf("Falling back to Redis DB=%d for tests at %s", firstTestDB, addr)
	return firstTestDB
}

func releaseOnCleanup(t TestingTB, addr, key string) {
	c, ok := any(t).(interface{ Cleanup(func()) })
	if !ok {
		return
	}
	c.Cleanup(func() {
		client := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := client.Del(ctx, key).Err(); err != nil {
			t.Logf("warning: failed to release redis db lock %s: %v", key, err)
		}
	})
}

// SetupTestRedis returns a client on an empty, reserved Redis DB.
// The test is skipped when no Redis is reachable, unless TEST_REQUIRE_REDIS is set.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := findRedis(t)
	if !ok {
		if redisRequired() {
			t.Fatal("Redis not available for testing")
		}
		t.Skip("Redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: selectTestRedisDB(t, addr)})
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		_ = client.Close()
		if redisRequired() {
			t.Fatalf("prepare test redis at %s: %v", addr, err)
		}
		t.Skipf("prepare test redis at %s: %v", addr, err)
	}
	return client
}
