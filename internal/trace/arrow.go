package trace

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/criticalsim/heatup/internal/models"
)

// exportChunk is the record batch size for Arrow export.
const exportChunk = 4096

// exportSchema is the columnar layout for exported trajectories. Scalars are
// one column each; per-generator channels are list columns so the file shape
// is independent of the configured SG count.
var exportSchema = arrow.NewSchema([]arrow.Field{
	{Name: "step", Type: arrow.PrimitiveTypes.Int64},
	{Name: "time_hr", Type: arrow.PrimitiveTypes.Float64},
	{Name: "tavg_f", Type: arrow.PrimitiveTypes.Float64},
	{Name: "rcs_pressure_psig", Type: arrow.PrimitiveTypes.Float64},
	{Name: "heatup_rate_f_hr", Type: arrow.PrimitiveTypes.Float64},
	{Name: "pzr_temp_f", Type: arrow.PrimitiveTypes.Float64},
	{Name: "pzr_level_pct", Type: arrow.PrimitiveTypes.Float64},
	{Name: "bubble_formed", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "startup_state", Type: arrow.BinaryTypes.String},
	{Name: "sg_overall", Type: arrow.BinaryTypes.String},
	{Name: "dump_bridge", Type: arrow.BinaryTypes.String},
	{Name: "dump_demand", Type: arrow.PrimitiveTypes.Float64},
	{Name: "sg_pressure_psig", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "sg_level_pct", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "sg_duty_btu_hr", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
	{Name: "sg_steam_flow_lbm_hr", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
}, nil)

// offsetWriter adapts an io.Writer to the io.WriteSeeker that arrow v17's
// ipc.NewFileWriter requires. The file writer only ever calls
// Seek(0, io.SeekCurrent) to learn its offset, so counting written bytes is
// sufficient; any other seek is an error.
type offsetWriter struct {
	w   io.Writer
	pos int64
}

func (o *offsetWriter) Write(p []byte) (int, error) {
	n, err := o.w.Write(p)
	o.pos += int64(n)
	return n, err
}

func (o *offsetWriter) Seek(offset int64, whence int) (int64, error) {
	if offset != 0 || whence != io.SeekCurrent {
		return 0, fmt.Errorf("offsetWriter: unsupported seek (offset %d, whence %d)", offset, whence)
	}
	return o.pos, nil
}

// ExportArrow writes snapshots to w in the Arrow IPC file format.
func ExportArrow(w io.Writer, snaps []models.Snapshot) error {
	mem := memory.NewGoAllocator()

	fw, err := ipc.NewFileWriter(&offsetWriter{w: w}, ipc.WithSchema(exportSchema), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}

	b := array.NewRecordBuilder(mem, exportSchema)
	defer b.Release()

	for start := 0; start < len(snaps); start += exportChunk {
		end := start + exportChunk
		if end > len(snaps) {
			end = len(snaps)
		}
		for i := start; i < end; i++ {
			appendSnapshot(b, &snaps[i])
		}

		rec := b.NewRecord()
		err := fw.Write(rec)
		rec.Release()
		if err != nil {
			fw.Close()
			return fmt.Errorf("failed to write record batch: %w", err)
		}
	}

	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to finalize arrow file: %w", err)
	}
	return nil
}

// ExportRun writes one run's recorded trajectory to w in the Arrow IPC file
// format.
func (s *Store) ExportRun(ctx context.Context, runID string, w io.Writer) error {
	snaps, err := s.Snapshots(ctx, runID)
	if err != nil {
		return err
	}
	return ExportArrow(w, snaps)
}

func appendSnapshot(b *array.RecordBuilder, snap *models.Snapshot) {
	b.Field(0).(*array.Int64Builder).Append(int64(snap.Step))
	b.Field(1).(*array.Float64Builder).Append(snap.TimeHr)
	b.Field(2).(*array.Float64Builder).Append(snap.TavgF)
	b.Field(3).(*array.Float64Builder).Append(snap.RCSPressurePsig)
	b.Field(4).(*array.Float64Builder).Append(snap.HeatupRateFHr)
	b.Field(5).(*array.Float64Builder).Append(snap.Pzr.TempF)
	b.Field(6).(*array.Float64Builder).Append(snap.Pzr.LevelPct)
	b.Field(7).(*array.BooleanBuilder).Append(snap.Pzr.BubbleFormed)
	b.Field(8).(*array.StringBuilder).Append(string(snap.Startup))
	b.Field(9).(*array.StringBuilder).Append(string(snap.SGOverall))
	b.Field(10).(*array.StringBuilder).Append(string(snap.Dump.Bridge))
	b.Field(11).(*array.Float64Builder).Append(snap.Dump.Demand)
	appendSGColumn(b.Field(12).(*array.ListBuilder), snap, func(g *models.SGState) float64 { return g.PressurePsig })
	appendSGColumn(b.Field(13).(*array.ListBuilder), snap, func(g *models.SGState) float64 { return g.LevelPct })
	appendSGColumn(b.Field(14).(*array.ListBuilder), snap, func(g *models.SGState) float64 { return g.HeatDutyBTUHr })
	appendSGColumn(b.Field(15).(*array.ListBuilder), snap, func(g *models.SGState) float64 { return g.SteamFlowLbmHr })
}

func appendSGColumn(lb *array.ListBuilder, snap *models.Snapshot, get func(*models.SGState) float64) {
	lb.Append(true)
	vb := lb.ValueBuilder().(*array.Float64Builder)
	for i := range snap.SGs {
		vb.Append(get(&snap.SGs[i]))
	}
}
