package trace

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"

	"github.com/criticalsim/heatup/internal/models"
)

func TestExportArrow_RoundTrip(t *testing.T) {
	snaps := make([]models.Snapshot, 10)
	for i := range snaps {
		snaps[i] = traceSnap(i+1, float64(i+1)/360.0)
	}
	snaps[9].Pzr.BubbleFormed = true
	snaps[9].Startup = models.StartupS2

	var buf bytes.Buffer
	if err := ExportArrow(&buf, snaps); err != nil {
		t.Fatalf("ExportArrow() error = %v", err)
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewFileReader() error = %v", err)
	}
	defer fr.Close()

	if got, want := len(fr.Schema().Fields()), len(exportSchema.Fields()); got != want {
		t.Fatalf("schema has %d fields, want %d", got, want)
	}

	var rows int
	first := true
	for {
		rec, err := fr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		rows += int(rec.NumRows())

		if first {
			first = false
			steps := rec.Column(0).(*array.Int64)
			if steps.Value(0) != 1 {
				t.Errorf("step[0] = %d, want 1", steps.Value(0))
			}
			times := rec.Column(1).(*array.Float64)
			if times.Value(0) != 1.0/360.0 {
				t.Errorf("time_hr[0] = %v, want %v", times.Value(0), 1.0/360.0)
			}
			bubbles := rec.Column(7).(*array.Boolean)
			if bubbles.Value(0) {
				t.Error("bubble_formed[0] = true, want false")
			}
			if !bubbles.Value(9) {
				t.Error("bubble_formed[9] = false, want true")
			}
			states := rec.Column(8).(*array.String)
			if states.Value(9) != "S2" {
				t.Errorf("startup_state[9] = %q, want S2", states.Value(9))
			}

			pressures := rec.Column(12).(*array.List)
			start, end := pressures.ValueOffsets(0)
			if end-start != 4 {
				t.Fatalf("sg_pressure_psig[0] has %d entries, want 4", end-start)
			}
			vals := pressures.ListValues().(*array.Float64)
			for i := start; i < end; i++ {
				if vals.Value(int(i)) != 2 {
					t.Errorf("sg_pressure_psig[0][%d] = %v, want 2", i-start, vals.Value(int(i)))
				}
			}
		}
	}
	if rows != 10 {
		t.Errorf("read %d rows, want 10", rows)
	}
}

func TestExportArrow_EmptySeries(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportArrow(&buf, nil); err != nil {
		t.Fatalf("ExportArrow() error = %v for empty series", err)
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewFileReader() error = %v", err)
	}
	defer fr.Close()

	if fr.NumRecords() != 0 {
		t.Errorf("NumRecords() = %d, want 0", fr.NumRecords())
	}
	if got, want := len(fr.Schema().Fields()), len(exportSchema.Fields()); got != want {
		t.Errorf("schema has %d fields, want %d", got, want)
	}
}

func TestExportArrow_ChunksLargeSeries(t *testing.T) {
	snaps := make([]models.Snapshot, exportChunk+5)
	for i := range snaps {
		snaps[i] = traceSnap(i+1, float64(i+1)/360.0)
	}

	var buf bytes.Buffer
	if err := ExportArrow(&buf, snaps); err != nil {
		t.Fatalf("ExportArrow() error = %v", err)
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewFileReader() error = %v", err)
	}
	defer fr.Close()

	if fr.NumRecords() != 2 {
		t.Fatalf("NumRecords() = %d, want 2", fr.NumRecords())
	}

	var rows []int
	for {
		rec, err := fr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		rows = append(rows, int(rec.NumRows()))
	}
	if len(rows) != 2 || rows[0] != exportChunk || rows[1] != 5 {
		t.Errorf("record batch rows = %v, want [%d 5]", rows, exportChunk)
	}
}

func TestStore_ExportRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "heatup.db")
	store, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	run, err := store.CreateRun(ctx, 1.0/360.0, 4, "")
	if err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	snaps := []models.Snapshot{
		traceSnap(1, 1.0/360.0),
		traceSnap(2, 2.0/360.0),
		traceSnap(3, 3.0/360.0),
	}
	if err := store.AppendSnapshots(ctx, run.ID, snaps); err != nil {
		t.Fatalf("AppendSnapshots() error = %v", err)
	}

	var buf bytes.Buffer
	if err := store.ExportRun(ctx, run.ID, &buf); err != nil {
		t.Fatalf("ExportRun() error = %v", err)
	}

	fr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewFileReader() error = %v", err)
	}
	defer fr.Close()

	var rows int
	for {
		rec, err := fr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		rows += int(rec.NumRows())
	}
	if rows != 3 {
		t.Errorf("exported %d rows, want 3", rows)
	}

	if err := store.ExportRun(ctx, "no-such-run", io.Discard); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("ExportRun() error = %v, want ErrRunNotFound", err)
	}
}
