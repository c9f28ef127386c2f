// Package retention thins old gps_position rows so the table stays small
// enough for a hobby-tier database. Recent data keeps full resolution; older
// data keeps one row per minute, then one per ten minutes, then nothing.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Tier boundaries and resolutions.
const (
	tier2MinAge = 7 * 24 * time.Hour  // rows younger than this are untouched
	tier2MaxAge = 30 * 24 * time.Hour // tier 2 covers 7-30 days, 1 per minute
	tier3MaxAge = 90 * 24 * time.Hour // tier 3 covers 30-90 days, 1 per 10 minutes
	tier2Bucket = time.Minute
	tier3Bucket = 10 * time.Minute
	deleteBatch = 1000
)

// DB is the slice of pgx.Conn the cleaner needs; tests substitute a fake.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Row is one stored reading, as much of it as thinning needs.
type Row struct {
	ID        int64
	Timestamp time.Time
}

// PlanThinning returns the ids to delete so that at most one row survives
// per bucket, keeping the earliest row of each bucket. rows must be sorted
// by timestamp ascending, which is how the cleaner queries them.
func PlanThinning(rows []Row, bucket time.Duration) []int64 {
	var toDelete []int64
	var lastBucket time.Time
	haveBucket := false

	for _, r := range rows {
		b := r.Timestamp.Truncate(bucket)
		if haveBucket && b.Equal(lastBucket) {
			toDelete = append(toDelete, r.ID)
			continue
		}
		lastBucket = b
		haveBucket = true
	}
	return toDelete
}

// Cleaner runs the tiered cleanup for one boat.
type Cleaner struct {
	db     DB
	boatID string
	dryRun bool
	log    *slog.Logger
	now    func() time.Time
}

// New builds a cleaner. With dryRun set it reports what it would delete and
// touches nothing.
func New(db DB, boatID string, dryRun bool, log *slog.Logger) *Cleaner {
	return &Cleaner{db: db, boatID: boatID, dryRun: dryRun, log: log, now: time.Now}
}

// Run executes the full tiered cleanup and returns the total rows deleted.
func (c *Cleaner) Run(ctx context.Context) (int64, error) {
	now := c.now().UTC()
	var total int64

	c.log.Info("starting tiered cleanup", "boat_id", c.boatID, "dry_run", c.dryRun)

	n, err := c.thinRange(ctx, now.Add(-tier2MaxAge), now.Add(-tier2MinAge), tier2Bucket, "tier2")
	if err != nil {
		return total, fmt.Errorf("tier 2 cleanup: %w", err)
	}
	total += n

	n, err = c.thinRange(ctx, now.Add(-tier3MaxAge), now.Add(-tier2MaxAge), tier3Bucket, "tier3")
	if err != nil {
		return total, fmt.Errorf("tier 3 cleanup: %w", err)
	}
	total += n

	n, err = c.deleteOlderThan(ctx, now.Add(-tier3MaxAge))
	if err != nil {
		return total, fmt.Errorf("expiry cleanup: %w", err)
	}
	total += n

	c.log.Info("cleanup complete", "deleted", total, "dry_run", c.dryRun)
	return total, nil
}

// thinRange walks [from, to) one day at a time, keeping memory bounded on
// boats with dense tracks, and deletes everything PlanThinning selects.
func (c *Cleaner) thinRange(ctx context.Context, from, to time.Time, bucket time.Duration, tier string) (int64, error) {
	var deleted int64

	for day := from; day.Before(to); day = day.Add(24 * time.Hour) {
		dayEnd := day.Add(24 * time.Hour)
		if dayEnd.After(to) {
			dayEnd = to
		}

		rows, err := c.fetchDay(ctx, day, dayEnd)
		if err != nil {
			return deleted, err
		}
		if len(rows) == 0 {
			continue
		}

		ids := PlanThinning(rows, bucket)
		if len(ids) == 0 {
			continue
		}

		if c.dryRun {
			c.log.Info("would delete rows", "tier", tier, "day", day.Format("2006-01-02"), "count", len(ids))
			deleted += int64(len(ids))
			continue
		}

		n, err := c.deleteIDs(ctx, ids)
		deleted += n
		if err != nil {
			return deleted, err
		}
		c.log.Info("deleted rows", "tier", tier, "day", day.Format("2006-01-02"), "count", n)
	}

	return deleted, nil
}

func (c *Cleaner) fetchDay(ctx context.Context, from, to time.Time) ([]Row, error) {
	rows, err := c.db.Query(ctx,
		`SELECT id, "timestamp" FROM gps_position
		 WHERE boat_id = $1 AND "timestamp" >= $2 AND "timestamp" < $3
		 ORDER BY "timestamp"`,
		c.boatID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query day %s: %w", from.Format("2006-01-02"), err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// deleteIDs removes rows in batches so a very dense day cannot produce an
// oversized statement.
func (c *Cleaner) deleteIDs(ctx context.Context, ids []int64) (int64, error) {
	var deleted int64

	for start := 0; start < len(ids); start += deleteBatch {
		end := start + deleteBatch
		if end > len(ids) {
			end = len(ids)
		}

		tag, err := c.db.Exec(ctx,
			`DELETE FROM gps_position WHERE id = ANY($1)`, ids[start:end])
		if err != nil {
			return deleted, fmt.Errorf("delete batch: %w", err)
		}
		deleted += tag.RowsAffected()
	}

	return deleted, nil
}

// deleteOlderThan drops every row past the retention horizon, in batches.
func (c *Cleaner) deleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if c.dryRun {
		rows, err := c.db.Query(ctx,
			`SELECT count(*) FROM gps_position WHERE boat_id = $1 AND "timestamp" < $2`,
			c.boatID, cutoff)
		if err != nil {
			return 0, fmt.Errorf("count expired: %w", err)
		}
		defer rows.Close()

		var count int64
		if rows.Next() {
			if err := rows.Scan(&count); err != nil {
				return 0, fmt.Errorf("scan count: %w", err)
			}
		}
		c.log.Info("would delete expired rows", "count", count)
		return count, rows.Err()
	}

	var deleted int64
	for {
		tag, err := c.db.Exec(ctx,
			`DELETE FROM gps_position WHERE id IN (
			   SELECT id FROM gps_position
			   WHERE boat_id = $1 AND "timestamp" < $2
			   LIMIT $3)`,
			c.boatID, cutoff, deleteBatch)
		if err != nil {
			return deleted, fmt.Errorf("delete expired: %w", err)
		}
		deleted += tag.RowsAffected()
		if tag.RowsAffected() < deleteBatch {
			break
		}
	}

	c.log.Info("deleted expired rows", "count", deleted)
	return deleted, nil
}
