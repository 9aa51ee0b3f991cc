package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	lock := NewRedisLock(client, WorkspaceRunKey("ws-1"), time.Minute)

	ok, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("first Acquire should succeed")
	}

	// A second holder for the same workspace must be rejected.
	other := NewRedisLock(client, WorkspaceRunKey("ws-1"), time.Minute)
	ok, err = other.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire (other): %v", err)
	}
	if ok {
		t.Fatal("second Acquire should fail while lock is held")
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	ok, err = other.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if !ok {
		t.Fatal("Acquire should succeed after release")
	}
}

func TestRedisLock_ReleaseDoesNotStealOwnership(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	holder := NewRedisLock(client, WorkspaceRunKey("ws-2"), time.Minute)
	if ok, _ := holder.Acquire(ctx); !ok {
		t.Fatal("holder should acquire")
	}

	// A lock instance that never acquired must not release the holder's key.
	impostor := NewRedisLock(client, WorkspaceRunKey("ws-2"), time.Minute)
	if err := impostor.Release(ctx); err != nil {
		t.Fatalf("Release (impostor): %v", err)
	}

	other := NewRedisLock(client, WorkspaceRunKey("ws-2"), time.Minute)
	if ok, _ := other.Acquire(ctx); ok {
		t.Fatal("lock should still be held by original owner")
	}
}

func TestWorkspaceRunKey(t *testing.T) {
	if got := WorkspaceRunKey("abc"); got != "mlads:automation:abc" {
		t.Errorf("WorkspaceRunKey = %q", got)
	}
}
