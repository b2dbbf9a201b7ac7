package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type memExternal struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemExternal() *memExternal { return &memExternal{data: make(map[string][]byte)} }

func (m *memExternal) Get(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[name]
	return data, ok, nil
}

func (m *memExternal) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = data
	return nil
}

func TestCache_PutIfAbsentIsImmutable(t *testing.T) {
	c := New(nil, nil, nil)
	ctx := context.Background()

	c.PutIfAbsent(ctx, "sandbox/com/acme/Widget", []byte{1, 2, 3}, nil)
	c.PutIfAbsent(ctx, "sandbox/com/acme/Widget", []byte{9, 9, 9}, nil)

	data, ok := c.Get(ctx, "sandbox/com/acme/Widget")
	if !ok {
		t.Fatal("expected a hit after PutIfAbsent")
	}
	if len(data) != 3 || data[0] != 1 {
		t.Errorf("second PutIfAbsent must not overwrite the first: got %v", data)
	}
}

func TestCache_ParentIsConsultedBeforeLocal(t *testing.T) {
	ctx := context.Background()
	parent := New(nil, nil, nil)
	parent.PutIfAbsent(ctx, "sandbox/com/acme/Widget", []byte{1}, nil)

	child := New(parent, nil, nil)
	child.PutIfAbsent(ctx, "sandbox/com/acme/Widget", []byte{2, 2}, nil)
	data, ok := child.Get(ctx, "sandbox/com/acme/Widget")
	if !ok || len(data) != 1 {
		t.Fatalf("expected child to see parent's entry, got %v ok=%v", data, ok)
	}
}

func TestCache_ExternalConsultedFirst(t *testing.T) {
	ctx := context.Background()
	ext := newMemExternal()
	ext.data["sandbox/com/acme/Widget"] = []byte{7}

	c := New(nil, ext, nil)
	data, ok := c.Get(ctx, "sandbox/com/acme/Widget")
	if !ok || len(data) != 1 || data[0] != 7 {
		t.Fatalf("expected external hit, got %v ok=%v", data, ok)
	}
}

func TestCache_GetOrRewrite_DedupsConcurrentCallers(t *testing.T) {
	c := New(nil, nil, nil)
	ctx := context.Background()

	var calls int32
	var mu sync.Mutex
	rewrite := func() ([]byte, []string, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return []byte{1, 2, 3}, nil, nil
	}

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data, err := c.GetOrRewrite(ctx, "sandbox/com/acme/Widget", rewrite)
			if err != nil {
				t.Errorf("GetOrRewrite: %v", err)
			}
			results[i] = data
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("rewrite called %d times, want 1", calls)
	}
	for i, r := range results {
		if len(r) != 3 {
			t.Errorf("result[%d] = %v, want 3 bytes", i, r)
		}
	}
}

func TestCache_GetOrRewrite_PropagatesError(t *testing.T) {
	c := New(nil, nil, nil)
	ctx := context.Background()
	wantErr := errors.New("boom")

	_, err := c.GetOrRewrite(ctx, "sandbox/com/acme/Widget", func() ([]byte, []string, error) {
		return nil, nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("GetOrRewrite error = %v, want %v", err, wantErr)
	}
	if _, ok := c.Get(ctx, "sandbox/com/acme/Widget"); ok {
		t.Error("a failed rewrite must not populate the cache")
	}
}

func TestCache_Stats(t *testing.T) {
	c := New(nil, nil, nil)
	ctx := context.Background()

	c.Get(ctx, "missing")
	c.PutIfAbsent(ctx, "sandbox/com/acme/Widget", []byte{1}, nil)
	c.Get(ctx, "sandbox/com/acme/Widget")

	hits, misses := c.Stats()
	require.EqualValues(t, 1, hits)
	require.EqualValues(t, 1, misses)
}
