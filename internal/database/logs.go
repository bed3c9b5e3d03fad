package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

// AppendSummaryRecord inserts one periodic detection log row
func (d *Database) AppendSummaryRecord(ctx context.Context, rec models.SummaryRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := d.querier(ctx).ExecContext(ctx,
		`INSERT INTO detection_logs (timestamp, source_id, area_name, mode, person_count, density, entry_count, exit_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ts,
		rec.SourceID,
		rec.AreaName,
		string(rec.Mode),
		rec.PersonCount,
		rec.Density,
		rec.EntryCount,
		rec.ExitCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection log: %w", err)
	}
	return nil
}

// SaveSummary writes the log row and, for tripwire sources, the running
// occupancy in one transaction.
func (d *Database) SaveSummary(ctx context.Context, rec models.SummaryRecord) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		if err := d.AppendSummaryRecord(ctx, rec); err != nil {
			return err
		}

		if rec.Mode == models.ModeTripwire {
			return d.UpdateOccupancy(ctx, rec.SourceID, rec.Occupancy)
		}
		return nil
	})
}
