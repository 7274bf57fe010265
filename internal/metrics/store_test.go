package metrics

import (
	"fmt"
	"sync"
	"testing"
)

func TestRecordToolCallAccumulates(t *testing.T) {
	store := NewStore()

	store.RecordToolCall("db_query", true, 12)
	store.RecordToolCall("db_query", true, 8)
	store.RecordToolCall("db_query", false, 5)
	store.RecordToolCall("list_files", true, 1)

	snap := store.Snapshot()
	if snap.TotalToolCalls != 4 || snap.TotalDurationMS != 26 {
		t.Errorf("totals = %d calls, %dms", snap.TotalToolCalls, snap.TotalDurationMS)
	}

	db := snap.Tools["db_query"]
	if db.Count != 3 || db.Successes != 2 || db.Errors != 1 || db.TotalDurationMS != 25 {
		t.Errorf("db_query = %+v", db)
	}
	if ls := snap.Tools["list_files"]; ls.Count != 1 || ls.Errors != 0 {
		t.Errorf("list_files = %+v", ls)
	}
}

func TestRecordRequest(t *testing.T) {
	store := NewStore()
	for i := 0; i < 7; i++ {
		store.RecordRequest()
	}
	if got := store.Snapshot().TotalRequests; got != 7 {
		t.Errorf("TotalRequests = %d, want 7", got)
	}
}

func TestRecentSessionsCapped(t *testing.T) {
	store := NewStore()
	for i := 0; i < maxRecentSessions+20; i++ {
		store.RecordSession(fmt.Sprintf("sess-%d", i), "alice", i)
	}

	recent := store.Snapshot().RecentSessions
	if len(recent) != maxRecentSessions {
		t.Fatalf("recent sessions = %d, want %d", len(recent), maxRecentSessions)
	}
	// Oldest entries were evicted.
	if recent[0].SessionID != "sess-20" {
		t.Errorf("oldest kept = %s, want sess-20", recent[0].SessionID)
	}
	if last := recent[len(recent)-1]; last.SessionID != fmt.Sprintf("sess-%d", maxRecentSessions+19) {
		t.Errorf("newest kept = %s", last.SessionID)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewStore()
	store.RecordToolCall("db_query", true, 10)

	snap := store.Snapshot()
	entry := snap.Tools["db_query"]
	entry.Count = 999
	snap.Tools["other"] = ToolMetrics{Count: 1}

	again := store.Snapshot()
	if again.Tools["db_query"].Count != 1 {
		t.Error("snapshot mutation leaked into the store")
	}
	if _, ok := again.Tools["other"]; ok {
		t.Error("snapshot map is shared with the store")
	}
}

func TestReset(t *testing.T) {
	store := NewStore()
	store.RecordRequest()
	store.RecordToolCall("db_query", true, 10)
	store.RecordSession("s", "alice", 1)

	store.Reset()

	snap := store.Snapshot()
	if snap.TotalRequests != 0 || snap.TotalToolCalls != 0 || snap.TotalDurationMS != 0 {
		t.Errorf("totals after reset = %+v", snap)
	}
	if len(snap.Tools) != 0 || len(snap.RecentSessions) != 0 {
		t.Errorf("maps after reset = %d tools, %d sessions", len(snap.Tools), len(snap.RecentSessions))
	}
}

func TestConcurrentRecording(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.RecordRequest()
				store.RecordToolCall("t", j%2 == 0, 1)
			}
		}()
	}
	wg.Wait()

	snap := store.Snapshot()
	if snap.TotalRequests != 800 || snap.TotalToolCalls != 800 {
		t.Errorf("totals = %d requests, %d calls", snap.TotalRequests, snap.TotalToolCalls)
	}
	if tm := snap.Tools["t"]; tm.Successes != 400 || tm.Errors != 400 {
		t.Errorf("tool t = %+v", tm)
	}
}
