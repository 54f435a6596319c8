// SPDX-License-Identifier: MPL-2.0

package history

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/pscli/pscli/internal/dispatch"
	"github.com/pscli/pscli/internal/testutil"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { testutil.MustClose(t, s) })
	return s
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	if err := s.migrate(context.Background()); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != len(migrations) {
		t.Errorf("applied migrations = %d, want %d", count, len(migrations))
	}
}

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	ctx := context.Background()
	clock := testutil.NewFakeClock(time.Time{})

	events := []dispatch.Event{
		{Trigger: "calc", Name: "run_calculator", Args: []string{"2", "3"}, Outcome: dispatch.OutcomeRan, StartedAt: clock.Now(), Duration: 40 * time.Millisecond},
		{Trigger: "nope", Outcome: dispatch.OutcomeUnknown, Err: errors.New("unknown command or group: 'nope'")},
		{Trigger: "secret", Name: "secret", Outcome: dispatch.OutcomeDenied},
	}
	for i, ev := range events {
		clock.Advance(time.Second)
		ev.StartedAt = clock.Now()
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("Record(%d) error = %v", i, err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) = %d entries", len(got))
	}
	if got[0].Trigger != "secret" || got[0].Outcome != "denied" {
		t.Errorf("newest = %+v", got[0])
	}
	if got[1].Error == "" || got[1].Outcome != "unknown" || len(got[1].Args) != 0 {
		t.Errorf("second = %+v", got[1])
	}

	all, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	last := all[len(all)-1]
	if last.Name != "run_calculator" || !slices.Equal(last.Args, []string{"2", "3"}) || last.Duration != 40*time.Millisecond {
		t.Errorf("oldest = %+v", last)
	}
	if last.ID == "" || last.ID == all[0].ID {
		t.Error("entries should carry distinct ids")
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	s := openMemory(t)
	ctx := context.Background()
	for range 3 {
		if err := s.Record(ctx, dispatch.Event{Trigger: "x", Outcome: dispatch.OutcomeRan, StartedAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Clear(ctx)
	if err != nil || n != 3 {
		t.Fatalf("Clear() = %d, %v", n, err)
	}
	if got, _ := s.Recent(ctx, 0); len(got) != 0 {
		t.Errorf("Recent() after Clear = %v", got)
	}
}

func TestOpen_FileCreatesDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "history.db")
	s, err := Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), dispatch.Event{Trigger: "x"}); err == nil {
		t.Error("Record() after Close should fail")
	}
}
