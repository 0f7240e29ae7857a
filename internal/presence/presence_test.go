package presence

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"lanshare/internal/testutil"
)

func newTestRegistry(t *testing.T) (*Registry, *testutil.StubClock) {
	t.Helper()
	clk := testutil.FixedClock()
	return New(Options{Clock: clk}), clk
}

func TestTouch_CreatesAndUpdates(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegistry(t)
	start := clk.Now()

	r.Touch("s1", "Anonymous User", "10.0.0.2", "home", time.Time{})
	clk.Advance(time.Minute)
	r.Touch("s1", "alice", "10.0.0.3", "browsing: root", time.Time{})

	e, ok := r.Lookup("s1")
	if !ok {
		t.Fatal("Lookup(s1) missing")
	}
	if e.Name != "alice" || e.RemoteAddress != "10.0.0.3" || e.Location != "browsing: root" {
		t.Errorf("entry = %+v", e)
	}
	if !e.ConnectedAt.Equal(start) {
		t.Errorf("ConnectedAt = %v, want %v", e.ConnectedAt, start)
	}
	if !e.LastSeenAt.Equal(start.Add(time.Minute)) {
		t.Errorf("LastSeenAt = %v, want %v", e.LastSeenAt, start.Add(time.Minute))
	}
}

func TestTouch_UsesSessionCreatedAt(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegistry(t)
	created := clk.Now().Add(-time.Hour)
	r.Touch("s1", "bob", "10.0.0.2", "home", created)
	e, _ := r.Lookup("s1")
	if !e.ConnectedAt.Equal(created) {
		t.Errorf("ConnectedAt = %v, want %v", e.ConnectedAt, created)
	}
}

func TestEvictStale_Boundary(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegistry(t)
	r.Touch("s1", "alice", "10.0.0.2", "home", time.Time{})

	clk.Advance(4*time.Minute + 59*time.Second)
	if got := r.ListActive(); len(got) != 1 {
		t.Fatalf("at T+4m59s ListActive() = %d entries, want 1", len(got))
	}

	clk.Advance(2 * time.Second) // T+5m1s
	if got := r.ListActive(); len(got) != 0 {
		t.Fatalf("at T+5m1s ListActive() = %d entries, want 0", len(got))
	}

	acts, total := r.RecentActivities(0)
	if total != 1 || acts[0].Kind != KindDisconnected || acts[0].SessionID != "s1" || acts[0].DisplayName != "alice" {
		t.Fatalf("activities = %+v (total %d), want one disconnected record for s1", acts, total)
	}
}

func TestEvictStale_ExplicitNow(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegistry(t)
	t0 := clk.Now()
	r.Touch("old", "a", "1.1.1.1", "home", time.Time{})
	clk.Advance(3 * time.Minute)
	r.Touch("new", "b", "2.2.2.2", "home", time.Time{})

	evicted := r.EvictStale(t0.Add(6 * time.Minute))
	if len(evicted) != 1 || evicted[0].SessionID != "old" {
		t.Fatalf("EvictStale() = %+v, want only old", evicted)
	}
	if _, ok := r.Lookup("new"); !ok {
		t.Fatal("new entry should survive")
	}
	if got := r.EvictStale(t0.Add(6 * time.Minute)); len(got) != 0 {
		t.Fatalf("second sweep evicted %d entries", len(got))
	}
}

func TestHeartbeat(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegistry(t)

	if r.Heartbeat("ghost") {
		t.Error("Heartbeat(ghost) = true, want false")
	}
	if _, ok := r.Lookup("ghost"); ok {
		t.Fatal("heartbeat must not create an entry")
	}
	if n := r.CountActive(); n != 0 {
		t.Fatalf("CountActive() = %d, want 0", n)
	}

	r.Touch("s1", "alice", "10.0.0.2", "browsing: /docs", time.Time{})
	clk.Advance(4 * time.Minute)
	if !r.Heartbeat("s1") {
		t.Fatal("Heartbeat(s1) = false")
	}
	clk.Advance(4 * time.Minute) // 8 min after touch, 4 after heartbeat
	e, ok := r.Lookup("s1")
	if !ok || r.CountActive() != 1 {
		t.Fatal("heartbeat should keep the entry alive")
	}
	if e.Location != "browsing: /docs" || e.Name != "alice" {
		t.Errorf("heartbeat mutated entry: %+v", e)
	}
}

func TestRename(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)
	if r.Rename("ghost", "x") {
		t.Error("Rename(ghost) = true")
	}
	r.Touch("s1", "Anonymous User", "10.0.0.2", "home", time.Time{})
	if !r.Rename("s1", "carol") {
		t.Fatal("Rename(s1) = false")
	}
	if e, _ := r.Lookup("s1"); e.Name != "carol" || e.Location != "home" {
		t.Errorf("entry = %+v", e)
	}
}

func TestRecordActivity_Bound(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegistry(t)
	for i := 0; i < 60; i++ {
		r.RecordActivity("s1", "alice", KindBrowsing, fmt.Sprintf("n%d", i), "10.0.0.2")
		clk.Advance(time.Second)
	}
	acts, total := r.RecentActivities(0)
	if total != 50 || len(acts) != 50 {
		t.Fatalf("total = %d, len = %d; want 50", total, len(acts))
	}
	if acts[0].Detail != "n59" {
		t.Errorf("newest = %q, want n59", acts[0].Detail)
	}
	if acts[49].Detail != "n10" {
		t.Errorf("oldest kept = %q, want n10", acts[49].Detail)
	}
	for i := 1; i < len(acts); i++ {
		if acts[i].Timestamp.After(acts[i-1].Timestamp) {
			t.Fatalf("activities not most-recent-first at %d", i)
		}
	}
}

func TestRecentActivities_Limit(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)
	for i := 0; i < 30; i++ {
		r.RecordActivity("s", "n", KindDownload, fmt.Sprint(i), "")
	}
	acts, total := r.RecentActivities(20)
	if len(acts) != 20 || total != 30 {
		t.Fatalf("len = %d total = %d, want 20/30", len(acts), total)
	}
	if acts[0].Detail != "29" {
		t.Errorf("first = %q, want 29", acts[0].Detail)
	}
}

func TestCustomCapacityAndStaleness(t *testing.T) {
	t.Parallel()
	clk := testutil.FixedClock()
	r := New(Options{Clock: clk, Staleness: time.Minute, Capacity: 3})
	for i := 0; i < 5; i++ {
		r.RecordActivity("s", "n", KindUpload, fmt.Sprint(i), "")
	}
	if _, total := r.RecentActivities(0); total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	r.Touch("s", "n", "", "home", time.Time{})
	clk.Advance(61 * time.Second)
	if n := r.CountActive(); n != 0 {
		t.Errorf("CountActive() = %d, want 0", n)
	}
}

func TestOnActivity(t *testing.T) {
	t.Parallel()
	clk := testutil.FixedClock()
	var mu sync.Mutex
	var kinds []Kind
	r := New(Options{Clock: clk, OnActivity: func(a Activity) {
		mu.Lock()
		kinds = append(kinds, a.Kind)
		mu.Unlock()
	}})
	r.Touch("s1", "a", "", "home", time.Time{})
	r.RecordActivity("s1", "a", KindDownload, "f.txt", "")
	clk.Advance(10 * time.Minute)
	r.CountActive()

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 2 || kinds[0] != KindDownload || kinds[1] != KindDisconnected {
		t.Fatalf("observed kinds = %v", kinds)
	}
}

func TestListActive_Order(t *testing.T) {
	t.Parallel()
	r, clk := newTestRegistry(t)
	r.Touch("b", "b", "", "home", time.Time{})
	clk.Advance(time.Second)
	r.Touch("a", "a", "", "home", time.Time{})
	got := r.ListActive()
	if len(got) != 2 || got[0].SessionID != "b" || got[1].SessionID != "a" {
		t.Fatalf("ListActive() = %+v", got)
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	r := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%5)
			for j := 0; j < 100; j++ {
				r.Touch(id, "n", "ip", "home", time.Time{})
				r.Heartbeat(id)
				r.RecordActivity(id, "n", KindBrowsing, "", "ip")
				r.ListActive()
				r.RecentActivities(20)
			}
		}(i)
	}
	wg.Wait()
	if n := r.CountActive(); n != 5 {
		t.Errorf("CountActive() = %d, want 5", n)
	}
	if _, total := r.RecentActivities(0); total != DefaultCapacity {
		t.Errorf("total = %d, want %d", total, DefaultCapacity)
	}
}
