package utils

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"handyman-app/job-service/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisNotifierPublishes(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, DefaultNotificationChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	n := NewRedisNotifier(rdb, "")
	want := models.Notification{UserID: "w1", Type: models.EventJobAccepted, JobID: "j1", Title: "Job accepted"}
	if err := n.Notify(ctx, want); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got models.Notification
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if got.UserID != want.UserID || got.Type != want.Type || got.JobID != want.JobID {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestHTTPNotifier(t *testing.T) {
	received := make(chan models.Notification, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications/send" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var n models.Notification
		_ = json.Unmarshal(body, &n)
		received <- n
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, time.Second)
	if err := n.Notify(context.Background(), models.Notification{UserID: "c1", Type: models.EventPaymentReceived}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := <-received; got.UserID != "c1" || got.Type != models.EventPaymentReceived {
		t.Fatalf("got %+v", got)
	}

	bad := NewHTTPNotifier(srv.URL+"/missing", time.Second)
	if err := bad.Notify(context.Background(), models.Notification{UserID: "c1"}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestRedisJobLocker(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()
	locker := NewRedisJobLocker(redislock.New(rdb), time.Second)

	release, err := locker.Lock(ctx, "job:1")
	if err != nil {
		t.Fatalf("first Lock: %v", err)
	}
	if _, err := locker.Lock(ctx, "job:1"); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("second Lock error = %v, want conflict", err)
	}
	other, err := locker.Lock(ctx, "job:2")
	if err != nil {
		t.Fatalf("Lock on another job: %v", err)
	}
	other()

	release()
	again, err := locker.Lock(ctx, "job:1")
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	again()
}

func TestJSONCache(t *testing.T) {
	mr, rdb := newTestRedis(t)
	ctx := context.Background()
	cache := NewJSONCache(rdb, "workers_search:", time.Minute)

	type entry struct {
		IDs []string `json:"ids"`
	}
	key, err := HashKey(map[string]int{"limit": 20})
	if err != nil {
		t.Fatalf("HashKey: %v", err)
	}
	again, _ := HashKey(map[string]int{"limit": 20})
	if key != again {
		t.Fatal("HashKey is not stable")
	}

	var got entry
	if hit, err := cache.Get(ctx, key, &got); err != nil || hit {
		t.Fatalf("Get on empty cache = %v, %v", hit, err)
	}
	if err := cache.Set(ctx, key, entry{IDs: []string{"a", "b"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("workers_search:" + key); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
	if hit, err := cache.Get(ctx, key, &got); err != nil || !hit || len(got.IDs) != 2 {
		t.Fatalf("Get = %v, %v, %+v", hit, err, got)
	}

	mr.FastForward(2 * time.Minute)
	if hit, _ := cache.Get(ctx, key, &got); hit {
		t.Fatal("entry outlived its ttl")
	}
}
