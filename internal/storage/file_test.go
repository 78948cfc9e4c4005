package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logx "briefbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", "NONE"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q): expected nil store", driver)
		}
	}
}

func TestFileStoreDedupSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	until := time.Now().Add(1 * time.Hour)
	if err := st.PutDedup(ctx, "k1", until); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	if _, ok, err := st.GetDedup(ctx, "k1"); err != nil || !ok {
		t.Fatalf("GetDedup before close: ok=%v err=%v", ok, err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopen: the journal replay must restore the entry.
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, ok, err := st2.GetDedup(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("GetDedup after reopen: ok=%v err=%v", ok, err)
	}
	if d := got.Sub(until); d > time.Second || d < -time.Second {
		t.Fatalf("until drifted: got %v want %v", got, until)
	}

	// Expiry is the caller's check: the store hands back whatever it has.
	if err := st2.PutDedup(ctx, "old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("PutDedup expired: %v", err)
	}
	if past, ok, _ := st2.GetDedup(ctx, "old"); !ok || !past.Before(time.Now()) {
		t.Fatalf("expected expired entry to be stored as-is: ok=%v until=%v", ok, past)
	}
	if ok, _ := WasSeen(ctx, st2, "ns", "gone"); ok {
		t.Fatal("unknown marker reported as seen")
	}
}

func TestFileStoreAppendAudit(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e := AuditEntry{At: time.Now(), Job: "weather", Action: "run", OK: 1, TookMS: 42}
	if err := st.AppendAudit(ctx, e); err != nil {
		t.Fatalf("AppendAudit: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path + ".audit.jsonl")
	if err != nil {
		t.Fatalf("read audit file: %v", err)
	}
	line := strings.TrimSpace(string(b))
	if !strings.Contains(line, `"weather"`) || strings.Contains(line, "\n") {
		t.Fatalf("unexpected audit line: %q", line)
	}
}

func TestSeenMarkers(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store")

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	if ok, _ := WasSeen(ctx, st, "techblog:blog", "guid-1"); ok {
		t.Fatal("fresh id reported as seen")
	}
	if err := MarkSeen(ctx, st, "techblog:blog", "guid-1", time.Hour); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if ok, _ := WasSeen(ctx, st, "techblog:blog", "guid-1"); !ok {
		t.Fatal("marked id not reported as seen")
	}
	// Different namespace is independent.
	if ok, _ := WasSeen(ctx, st, "techblog:other", "guid-1"); ok {
		t.Fatal("seen marker leaked across namespaces")
	}
}

func TestSeenMarkersNilStore(t *testing.T) {
	ctx := context.Background()
	if err := MarkSeen(ctx, nil, "ns", "id", time.Hour); err != nil {
		t.Fatalf("MarkSeen(nil): %v", err)
	}
	if ok, err := WasSeen(ctx, nil, "ns", "id"); ok || err != nil {
		t.Fatalf("WasSeen(nil): ok=%v err=%v", ok, err)
	}
}
