package sessions

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"justicebench/internal/llm"
)

func TestRedisKeyIsNamespaced(t *testing.T) {
	if got := redisKey("abc"); got != "justicebench:session:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "", time.Minute); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := NewRedisStore(context.Background(), "http://localhost", time.Minute); err == nil {
		t.Fatal("expected error for non-redis url")
	}
}

func TestDecodeSessionKeepsNilSlots(t *testing.T) {
	raw := []byte(`{"session_id":"s1","questions":["a","b"],"answers":[null,{"answer":"x","reasoning":"y"}],"evaluations":[null,null]}`)
	s, err := decodeSession(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Answers[0] != nil || s.Answers[1] == nil || *s.Answers[1] != (llm.Answer{Answer: "x", Reasoning: "y"}) {
		t.Fatalf("unexpected answers %+v", s.Answers)
	}
}

// Runs against a live Redis when JB_TEST_REDIS_URL is set.
func TestRedisStoreConcurrentUpdates(t *testing.T) {
	url := os.Getenv("JB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("JB_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	store, err := NewRedisStore(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	id := uuid.NewString()
	sess := Session{ID: id, Questions: make([]string, 5)}
	sess.resizeSlots(nil)
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer store.Delete(ctx, id)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Update(ctx, id, func(s *Session) error {
				s.Answers[i] = &llm.Answer{Answer: "ok"}
				return nil
			})
			if err != nil && !errors.Is(err, ErrConflict) {
				t.Errorf("update %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	filled := 0
	for _, a := range got.Answers {
		if a != nil {
			filled++
		}
	}
	if filled == 0 {
		t.Fatalf("expected answers to be written")
	}
}
