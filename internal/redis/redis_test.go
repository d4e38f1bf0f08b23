package redis

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"agentdocs/internal/config"
)

func TestLockIsExclusiveAndTokenScoped(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()
	ctx := context.Background()
	key := "agentdocs:test:lock:" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Unlock(ctx, key, "owner-c")

	ok, err := client.TryLock(ctx, key, "owner-a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	ok, err = client.TryLock(ctx, key, "owner-b", time.Minute)
	if err != nil || ok {
		t.Fatalf("second lock should fail: ok=%v err=%v", ok, err)
	}
	released, err := client.Unlock(ctx, key, "owner-b")
	if err != nil || released {
		t.Fatalf("foreign unlock should be refused: released=%v err=%v", released, err)
	}
	released, err = client.Unlock(ctx, key, "owner-a")
	if err != nil || !released {
		t.Fatalf("owner unlock: released=%v err=%v", released, err)
	}
	ok, err = client.TryLock(ctx, key, "owner-c", time.Minute)
	if err != nil || !ok {
		t.Fatalf("lock after release: ok=%v err=%v", ok, err)
	}
}

func TestNilClientReportsNotInitialized(t *testing.T) {
	var c *Client
	if _, err := c.TryLock(context.Background(), "k", "v", time.Second); err == nil {
		t.Fatalf("expected error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close nil client: %v", err)
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed tests")
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi port: %v", err)
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}
	client, err := NewRedisClient(&config.Config{Redis: config.RedisConfig{Host: host, Port: port, DB: db}})
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	return client
}
