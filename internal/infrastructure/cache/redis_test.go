package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestJSONRoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()

	type page struct {
		Total int      `json:"total"`
		IDs   []string `json:"ids"`
	}
	var got page
	found, err := GetJSON(ctx, rdb, "k", &got)
	if err != nil || found {
		t.Fatalf("miss: found=%v err=%v", found, err)
	}

	if err := SetJSON(ctx, rdb, "k", page{Total: 2, IDs: []string{"a", "b"}}, time.Minute); err != nil {
		t.Fatal(err)
	}
	found, err = GetJSON(ctx, rdb, "k", &got)
	if err != nil || !found || got.Total != 2 || len(got.IDs) != 2 {
		t.Fatalf("hit: %+v found=%v err=%v", got, found, err)
	}

	mr.FastForward(2 * time.Minute)
	if found, _ := GetJSON(ctx, rdb, "k", &got); found {
		t.Fatal("entry survived its ttl")
	}
}

func TestDeletePattern(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	for _, k := range []string{"bets:1:1", "bets:1:2", "bets:2:1"} {
		mr.Set(k, "x")
	}
	if err := DeletePattern(ctx, rdb, "bets:1:*"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("bets:1:1") || mr.Exists("bets:1:2") {
		t.Fatal("user 1 pages not deleted")
	}
	if !mr.Exists("bets:2:1") {
		t.Fatal("user 2 page deleted")
	}
}

func TestGeneration(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	if n, err := Generation(ctx, rdb, "gen:1"); err != nil || n != 0 {
		t.Fatalf("unset: n=%d err=%v", n, err)
	}
	rdb.Incr(ctx, "gen:1")
	rdb.Incr(ctx, "gen:1")
	if n, err := Generation(ctx, rdb, "gen:1"); err != nil || n != 2 {
		t.Fatalf("after bumps: n=%d err=%v", n, err)
	}
}
