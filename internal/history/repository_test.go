package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/doorsync/doorsync-core/internal/door"
	"github.com/doorsync/doorsync-core/internal/infrastructure/config"
	"github.com/doorsync/doorsync-core/internal/infrastructure/database"
)

func testRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(context.Background(), db.DB)
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	return repo
}

func transition(id door.ID, prev, next door.State, at time.Time) door.Transition {
	return door.Transition{Door: id, Previous: prev, New: next, At: at}
}

func TestRecordAndRecent(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)

	steps := []door.Transition{
		transition(1, door.StateClosed, door.StateOpening, base),
		transition(1, door.StateOpening, door.StateOpen, base.Add(15*time.Second)),
		transition(2, door.StateClosed, door.StateOpening, base.Add(time.Minute)),
	}
	for _, tr := range steps {
		if err := repo.RecordTransition(ctx, tr, SourceStream); err != nil {
			t.Fatalf("RecordTransition() error = %v", err)
		}
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	// Newest first.
	if entries[0].Door != 2 {
		t.Errorf("entries[0].Door = %d, want 2", entries[0].Door)
	}
	if entries[2].Previous != door.StateClosed || entries[2].New != door.StateOpening {
		t.Errorf("oldest entry = %s -> %s, want closed -> opening", entries[2].Previous, entries[2].New)
	}
	if !entries[2].At.Equal(base) {
		t.Errorf("oldest entry At = %v, want %v", entries[2].At, base)
	}
	if entries[0].Source != SourceStream {
		t.Errorf("Source = %q, want %q", entries[0].Source, SourceStream)
	}
}

func TestRecentForDoor(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)

	repo.RecordTransition(ctx, transition(1, door.StateClosed, door.StateOpening, base), SourceStream)
	repo.RecordTransition(ctx, transition(2, door.StateClosed, door.StateOpening, base.Add(time.Second)), SourceStream)
	repo.RecordTransition(ctx, transition(1, door.StateOpening, door.StateOpen, base.Add(2*time.Second)), SourceStream)

	entries, err := repo.RecentForDoor(ctx, 1, 10)
	if err != nil {
		t.Fatalf("RecentForDoor() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries for door 1, want 2", len(entries))
	}
	for _, entry := range entries {
		if entry.Door != 1 {
			t.Errorf("entry.Door = %d, want 1", entry.Door)
		}
	}
}

func TestRecentLimit(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		tr := transition(1, door.StateClosed, door.StateOpening, base.Add(time.Duration(i)*time.Second))
		if err := repo.RecordTransition(ctx, tr, SourceStream); err != nil {
			t.Fatalf("RecordTransition() error = %v", err)
		}
	}

	entries, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("got %d entries, want 2", len(entries))
	}
}

func TestRecordDefaultsSource(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	tr := transition(1, door.StateOpen, door.StateClosing, time.Now())
	if err := repo.RecordTransition(ctx, tr, ""); err != nil {
		t.Fatalf("RecordTransition() error = %v", err)
	}

	entries, err := repo.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if entries[0].Source != SourceStream {
		t.Errorf("Source = %q, want %q", entries[0].Source, SourceStream)
	}
}

func TestPrune(t *testing.T) {
	repo := testRepository(t)
	ctx := context.Background()

	old := transition(1, door.StateClosed, door.StateOpening, time.Now().Add(-48*time.Hour))
	recent := transition(1, door.StateOpening, door.StateOpen, time.Now())
	repo.RecordTransition(ctx, old, SourceStream)
	repo.RecordTransition(ctx, recent, SourceStream)

	deleted, err := repo.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries after prune, want 1", len(entries))
	}
}

func TestPruneRejectsNonPositive(t *testing.T) {
	repo := testRepository(t)

	if _, err := repo.Prune(context.Background(), 0); err == nil {
		t.Error("Prune(0) expected error")
	}
}

func TestRecorderHandleTransition(t *testing.T) {
	repo := testRepository(t)
	recorder := NewRecorder(repo)

	recorder.HandleTransition(transition(1, door.StateClosed, door.StateOpening, time.Now()))

	entries, err := repo.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].New != door.StateOpening {
		t.Errorf("New = %q, want opening", entries[0].New)
	}
}
