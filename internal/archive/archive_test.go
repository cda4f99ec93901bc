package archive

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/talgya/mars-colony/internal/sim"
	"github.com/talgya/mars-colony/internal/tuning"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// recordRun drives an engine n hours into the archive.
func recordRun(t *testing.T, db *DB, seed uint64, hours int) *Run {
	t.Helper()
	e := sim.New(seed, tuning.Default(), slog.New(slog.DiscardHandler))
	run, err := db.BeginRun(seed)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < hours; i++ {
		if err := e.Step(); err != nil {
			t.Fatal(err)
		}
		if err := run.RecordTick(e.State, e.DrainEvents()); err != nil {
			t.Fatal(err)
		}
	}
	if err := run.Finish(e.State); err != nil {
		t.Fatal(err)
	}
	return run
}

func TestArchiveRoundTrip(t *testing.T) {
	db := openTestDB(t)
	run := recordRun(t, db, 42, 48)

	runs, err := db.Runs(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != run.ID {
		t.Errorf("id = %s, want %s", got.ID, run.ID)
	}
	if got.Seed != "42" {
		t.Errorf("seed = %q, want 42", got.Seed)
	}
	if got.Hours != 48 {
		t.Errorf("hours = %d, want 48", got.Hours)
	}
	if len(got.Checksum) != 16 {
		t.Errorf("checksum %q not 16 hex chars", got.Checksum)
	}
	if len(got.Digest) != 64 {
		t.Errorf("digest %q not 32 hex bytes", got.Digest)
	}

	sums, err := db.TickChecksums(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 48 {
		t.Errorf("tick rows = %d, want 48", len(sums))
	}
	if sums[len(sums)-1] != got.Checksum {
		t.Errorf("last tick checksum %s != run checksum %s", sums[len(sums)-1], got.Checksum)
	}
}

func TestIdenticalRunsIdenticalDigests(t *testing.T) {
	db := openTestDB(t)
	a := recordRun(t, db, 7, 72)
	b := recordRun(t, db, 7, 72)
	c := recordRun(t, db, 8, 72)

	runs, err := db.Runs(10)
	if err != nil {
		t.Fatal(err)
	}
	byID := map[string]RunSummary{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	if byID[a.ID].Digest != byID[b.ID].Digest {
		t.Error("same seed, same length: digests differ")
	}
	if byID[a.ID].Digest == byID[c.ID].Digest {
		t.Error("different seeds: digests collide")
	}
}

func TestEventsStored(t *testing.T) {
	db := openTestDB(t)

	tun := tuning.Default()
	tun.SupplyDropProb = 1
	tun.StormProb = 0
	tun.MeteoroidProb = 0
	e := sim.New(3, tun, slog.New(slog.DiscardHandler))
	run, err := db.BeginRun(3)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if err := run.RecordTick(e.State, e.DrainEvents()); err != nil {
		t.Fatal(err)
	}

	events, err := db.RecentEvents(run.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) == 0 {
		t.Fatal("no events stored for a guaranteed supply drop")
	}
	if events[0].Category != "boon" {
		t.Errorf("category = %q, want boon", events[0].Category)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	db := openTestDB(t)
	if err := db.SaveMeta("schema", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("schema", "2"); err != nil {
		t.Fatal(err)
	}
	v, err := db.GetMeta("schema")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2" {
		t.Errorf("meta = %q, want 2", v)
	}
}
