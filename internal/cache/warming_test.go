package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type mockRefresher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newMockRefresher() *mockRefresher {
	return &mockRefresher{calls: map[string]int{}, fail: map[string]error{}}
}

func (m *mockRefresher) Refresh(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[address]++
	return m.fail[address]
}

func (m *mockRefresher) count(address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[address]
}

func TestCacheWarmer_Warm_Success(t *testing.T) {
	r := newMockRefresher()
	warmer := NewCacheWarmer(r, nil, 0)

	if err := warmer.Warm(context.Background(), []string{"seattle", "boston"}); err != nil {
		t.Fatalf("Warm() error = %v, want nil", err)
	}
	if r.count("seattle") != 1 || r.count("boston") != 1 {
		t.Errorf("Refresh calls = %v, want one per address", r.calls)
	}
}

func TestCacheWarmer_Warm_EmptyAddresses(t *testing.T) {
	warmer := NewCacheWarmer(newMockRefresher(), nil, 0)
	ctx := context.Background()

	if err := warmer.Warm(ctx, nil); err != nil {
		t.Fatalf("Warm() with nil addresses error = %v, want nil", err)
	}
	if err := warmer.Warm(ctx, []string{}); err != nil {
		t.Fatalf("Warm() with empty addresses error = %v, want nil", err)
	}
}

// TestCacheWarmer_Warm_PartialFailure verifies failures are aggregated while the
// remaining addresses still refresh.
func TestCacheWarmer_Warm_PartialFailure(t *testing.T) {
	r := newMockRefresher()
	apiDown := errors.New("api down")
	r.fail["seattle"] = apiDown
	warmer := NewCacheWarmer(r, nil, 0)

	err := warmer.Warm(context.Background(), []string{"seattle", "boston"})
	if err == nil {
		t.Fatal("Warm() error = nil, want non-nil")
	}
	if !errors.Is(err, apiDown) {
		t.Errorf("Warm() error = %v, want wrapping %v", err, apiDown)
	}
	if !strings.Contains(err.Error(), "warm seattle") {
		t.Errorf("Warm() error = %q, want address in message", err)
	}
	if r.count("boston") != 1 {
		t.Errorf("boston Refresh calls = %d, want 1", r.count("boston"))
	}
}

func TestCacheWarmer_Start_Periodic(t *testing.T) {
	r := newMockRefresher()
	warmer := NewCacheWarmer(r, nil, 0)

	if err := warmer.Start(context.Background(), []string{"seattle"}, 50*time.Millisecond); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer warmer.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for r.count("seattle") < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := r.count("seattle"); n < 2 {
		t.Errorf("Refresh calls = %d, want at least 2 scheduled runs", n)
	}
}

func TestCacheWarmer_Start_NoAddresses(t *testing.T) {
	warmer := NewCacheWarmer(newMockRefresher(), nil, 0)
	if err := warmer.Start(context.Background(), nil, time.Minute); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	warmer.Stop()
}
