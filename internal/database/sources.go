package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Capitan-Parrot/distributed-video-system/crowdflow/internal/models"
)

const sourceColumns = `id, name, area_name, source, mode, crowd_threshold, area_sq_meters,
	occupancy_threshold, current_occupancy,
	tripwire_line_x1, tripwire_line_y1, tripwire_line_x2, tripwire_line_y2,
	is_active, latitude, longitude`

type rowScanner interface {
	Scan(dest ...any) error
}

// GetActiveSources retrieves every source marked active
func (d *Database) GetActiveSources(ctx context.Context) ([]models.SourceConfig, error) {
	rows, err := d.querier(ctx).QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE is_active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sources: %w", err)
	}
	defer rows.Close()

	var sources []models.SourceConfig
	for rows.Next() {
		cfg, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, cfg)
	}

	return sources, rows.Err()
}

func (d *Database) GetSource(ctx context.Context, sourceID string) (*models.SourceConfig, error) {
	row := d.querier(ctx).QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE id = $1`, sourceID)

	cfg, err := scanSource(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Источник не найден - это не ошибка
		}
		return nil, err
	}

	return &cfg, nil
}

// UpdateOccupancy stores the running occupancy of a tripwire source
func (d *Database) UpdateOccupancy(ctx context.Context, sourceID string, occupancy int) error {
	_, err := d.querier(ctx).ExecContext(ctx,
		"UPDATE sources SET current_occupancy = $1, updated_at = NOW() WHERE id = $2",
		occupancy,
		sourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update occupancy: %w", err)
	}
	return nil
}

func scanSource(row rowScanner) (models.SourceConfig, error) {
	var (
		cfg            models.SourceConfig
		mode           string
		x1, y1, x2, y2 sql.NullInt64
		lat, lon       sql.NullFloat64
	)

	err := row.Scan(
		&cfg.ID,
		&cfg.Name,
		&cfg.AreaName,
		&cfg.Source,
		&mode,
		&cfg.CrowdThreshold,
		&cfg.AreaSqMeters,
		&cfg.OccupancyThreshold,
		&cfg.CurrentOccupancy,
		&x1, &y1, &x2, &y2,
		&cfg.IsActive,
		&lat, &lon,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cfg, err
		}
		return cfg, fmt.Errorf("failed to scan source: %w", err)
	}

	cfg.Mode = models.Mode(mode)
	cfg.TripwireX1 = nullInt(x1)
	cfg.TripwireY1 = nullInt(y1)
	cfg.TripwireX2 = nullInt(x2)
	cfg.TripwireY2 = nullInt(y2)
	cfg.Latitude = nullFloat(lat)
	cfg.Longitude = nullFloat(lon)

	return cfg, nil
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
