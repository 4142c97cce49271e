package journal

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/garagedoor/internal/infrastructure/database"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "journal.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(ctx, Schema); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewStore(db.DB)
}

func TestRecord_FillsDefaults(t *testing.T) {
	s := openStore(t)
	e := &Entry{Kind: KindDoor, Subject: "door1", Value: "open"}

	if err := s.Record(context.Background(), e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if e.ID == "" {
		t.Error("Record() did not assign an ID")
	}
	if e.CreatedAt.IsZero() {
		t.Error("Record() did not assign CreatedAt")
	}
}

func TestRecord_RequiresKindAndSubject(t *testing.T) {
	s := openStore(t)
	if err := s.Record(context.Background(), &Entry{Kind: KindDoor}); err == nil {
		t.Error("Record() without subject error = nil")
	}
	if err := s.Record(context.Background(), &Entry{Subject: "door1"}); err == nil {
		t.Error("Record() without kind error = nil")
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	records := []Entry{
		{Kind: KindDoor, Subject: "door1", Value: "closed", CreatedAt: base},
		{Kind: KindPulse, Subject: "opener", Value: "ok", CreatedAt: base.Add(time.Second)},
		{Kind: KindDoor, Subject: "door1", Value: "open", CreatedAt: base.Add(2 * time.Second)},
		{Kind: KindDoor, Subject: "door2", Value: "open", CreatedAt: base.Add(3 * time.Second)},
		{Kind: KindConnectivity, Subject: "garage", Value: "bus_connected", CreatedAt: base.Add(4 * time.Second)},
	}
	for i := range records {
		if err := s.Record(ctx, &records[i]); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
		wantLen   int
	}{
		{"all", Filter{}, 5, "bus_connected", 5},
		{"by kind", Filter{Kind: KindDoor}, 3, "open", 3},
		{"by subject", Filter{Kind: KindDoor, Subject: "door1"}, 2, "open", 2},
		{"since", Filter{Since: base.Add(3 * time.Second)}, 2, "bus_connected", 2},
		{"paged", Filter{Limit: 2, Offset: 1}, 5, "open", 2},
		{"no match", Filter{Subject: "door9"}, 0, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) != tt.wantLen {
				t.Fatalf("len(Entries) = %d, want %d", len(res.Entries), tt.wantLen)
			}
			if tt.wantLen > 0 && res.Entries[0].Value != tt.wantFirst {
				t.Errorf("first Value = %q, want %q", res.Entries[0].Value, tt.wantFirst)
			}
		})
	}
}

func TestList_ClampsLimit(t *testing.T) {
	s := openStore(t)

	res, err := s.List(context.Background(), Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != MaxLimit || res.Offset != 0 {
		t.Errorf("Limit, Offset = %d, %d, want %d, 0", res.Limit, res.Offset, MaxLimit)
	}
	if res.Entries == nil {
		t.Error("Entries = nil, want empty slice")
	}

	res, err = s.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", res.Limit, DefaultLimit)
	}
}

func TestList_PreservesTimestamp(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	at := time.Date(2026, 3, 1, 8, 0, 0, 123456789, time.UTC)
	if err := s.Record(ctx, &Entry{Kind: KindDoor, Subject: "door1", Value: "open", CreatedAt: at}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	res, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got := res.Entries[0].CreatedAt; !got.Equal(at) {
		t.Errorf("CreatedAt = %v, want %v", got, at)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		if err := s.Record(ctx, &Entry{Kind: KindDoor, Subject: "door1", Value: "open", CreatedAt: now.Add(-age)}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := s.Prune(ctx, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() removed %d, want 2", n)
	}

	res, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 {
		t.Errorf("Total after prune = %d, want 1", res.Total)
	}
}

type countingLogger struct {
	warns atomic.Int32
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Info(string, ...any)  {}
func (l *countingLogger) Warn(string, ...any)  { l.warns.Add(1) }
func (l *countingLogger) Error(string, ...any) {}

func TestRunRetention(t *testing.T) {
	s := openStore(t)
	now := time.Now()
	s.now = func() time.Time { return now }

	ctx := context.Background()
	if err := s.Record(ctx, &Entry{Kind: KindDoor, Subject: "door1", Value: "open", CreatedAt: now.Add(-48 * time.Hour)}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := s.Record(ctx, &Entry{Kind: KindDoor, Subject: "door1", Value: "closed", CreatedAt: now}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	logger := &countingLogger{}
	go func() { done <- s.RunRetention(runCtx, 24*time.Hour, 10*time.Millisecond, logger) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		res, err := s.List(ctx, Filter{})
		if err == nil && res.Total == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("RunRetention() error = %v, want Canceled", err)
	}

	res, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Total != 1 || res.Entries[0].Value != "closed" {
		t.Errorf("entries after retention = %+v, want only the recent one", res.Entries)
	}
	if logger.warns.Load() != 0 {
		t.Errorf("RunRetention logged %d warnings", logger.warns.Load())
	}
}
