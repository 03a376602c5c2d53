package querycache

import (
	"context"
	"strings"
	"testing"

	"github.com/duplicheck/duplicheck/internal/detector"
)

func TestKeyIsDeterministic(t *testing.T) {
	opts := detector.Options{MinSimilarity: 60, ChunkSize: 16}
	first := Key("some query text", opts, 12345)
	second := Key("some query text", opts, 12345)
	if first != second {
		t.Errorf("identical inputs produced different keys: %s vs %s", first, second)
	}
	if !strings.HasPrefix(first, "check:") {
		t.Errorf("key %s missing namespace prefix", first)
	}
}

func TestKeyVariesWithInputs(t *testing.T) {
	base := Key("text", detector.Options{}, 1)
	variants := []string{
		Key("other text", detector.Options{}, 1),
		Key("text", detector.Options{MinSimilarity: 70}, 1),
		Key("text", detector.Options{ChunkSize: 4}, 1),
		Key("text", detector.Options{MaxResults: 5}, 1),
		Key("text", detector.Options{}, 2),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base key", i)
		}
	}
}

func TestNilCacheComputesDirectly(t *testing.T) {
	var cache *ReportCache
	want := &detector.Report{DuplicatePercentage: 42}
	got, err := cache.GetOrCompute(context.Background(), "check:abc", func() (*detector.Report, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if got != want {
		t.Error("nil cache did not pass through the computed report")
	}
	cache.Invalidate(context.Background())
	if hits, misses := cache.Stats(); hits != 0 || misses != 0 {
		t.Errorf("nil cache stats = %d/%d, want 0/0", hits, misses)
	}
}

func TestCacheWithoutClientComputesDirectly(t *testing.T) {
	cache := newWithClient(nil, 0, nil)
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := cache.GetOrCompute(context.Background(), "check:abc", func() (*detector.Report, error) {
			calls++
			return &detector.Report{}, nil
		})
		if err != nil {
			t.Fatalf("GetOrCompute failed: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("compute calls = %d, want 2 with caching disabled", calls)
	}
}
