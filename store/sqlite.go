package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/holiman/uint256"
	_ "modernc.org/sqlite"

	"github.com/vestflow-xyz/go-vestflow/engine"
	"github.com/vestflow-xyz/go-vestflow/vesting"
)

// SQLiteStore persists snapshots in a SQLite database. Amounts are stored as
// decimal strings to keep 256-bit values exact.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed store. Use ":memory:"
// for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		owner TEXT NOT NULL,
		withdrawable TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS schedules (
		instance_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		beneficiary TEXT NOT NULL,
		start INTEGER NOT NULL,
		cliff INTEGER NOT NULL,
		duration INTEGER NOT NULL,
		slice_period INTEGER NOT NULL,
		amount_total TEXT NOT NULL,
		released TEXT NOT NULL,
		revocable INTEGER NOT NULL,
		revoked INTEGER NOT NULL,
		first_release_percent INTEGER NOT NULL,
		second_release_percent INTEGER NOT NULL,
		second_release_time INTEGER NOT NULL,
		tier1_released INTEGER NOT NULL,
		tier2_released INTEGER NOT NULL,
		from_locked INTEGER NOT NULL,
		frozen_entitlement TEXT,
		PRIMARY KEY (instance_id, id),
		FOREIGN KEY (instance_id) REFERENCES instances(id)
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_instance ON schedules(instance_id, position);
	CREATE INDEX IF NOT EXISTS idx_schedules_beneficiary ON schedules(instance_id, beneficiary);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Save persists the snapshot, replacing any previous state for the instance.
func (s *SQLiteStore) Save(ctx context.Context, snap *engine.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	withdrawable := "0"
	if snap.Withdrawable != nil {
		withdrawable = snap.Withdrawable.Dec()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO instances (id, account, owner, withdrawable) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET account = excluded.account,
		 owner = excluded.owner, withdrawable = excluded.withdrawable`,
		snap.ID, snap.Account, snap.Owner, withdrawable,
	); err != nil {
		return fmt.Errorf("saving instance: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedules WHERE instance_id = ?`, snap.ID,
	); err != nil {
		return fmt.Errorf("clearing schedules: %w", err)
	}

	for i, sched := range snap.Schedules {
		var frozen sql.NullString
		if sched.FrozenEntitlement != nil {
			frozen = sql.NullString{String: sched.FrozenEntitlement.Dec(), Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedules (instance_id, position, id, beneficiary, start,
			 cliff, duration, slice_period, amount_total, released, revocable,
			 revoked, first_release_percent, second_release_percent,
			 second_release_time, tier1_released, tier2_released, from_locked,
			 frozen_entitlement)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, i, sched.ID, sched.Beneficiary, sched.Start,
			sched.Cliff, sched.Duration, sched.SlicePeriod,
			sched.AmountTotal.Dec(), sched.Released.Dec(), sched.Revocable,
			sched.Revoked, sched.FirstReleasePercent, sched.SecondReleasePercent,
			sched.SecondReleaseTime, sched.Tier1Released, sched.Tier2Released,
			sched.FromLocked, frozen,
		); err != nil {
			return fmt.Errorf("saving schedule %s: %w", sched.ID, err)
		}
	}

	return tx.Commit()
}

// Load retrieves the snapshot for an instance.
func (s *SQLiteStore) Load(ctx context.Context, instanceID string) (*engine.Snapshot, error) {
	snap := &engine.Snapshot{ID: instanceID}

	var withdrawable string
	err := s.db.QueryRowContext(ctx,
		`SELECT account, owner, withdrawable FROM instances WHERE id = ?`, instanceID,
	).Scan(&snap.Account, &snap.Owner, &withdrawable)
	if err == sql.ErrNoRows {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading instance: %w", err)
	}

	if snap.Withdrawable, err = parseAmount(withdrawable); err != nil {
		return nil, fmt.Errorf("loading instance: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, beneficiary, start, cliff, duration, slice_period,
		 amount_total, released, revocable, revoked, first_release_percent,
		 second_release_percent, second_release_time, tier1_released,
		 tier2_released, from_locked, frozen_entitlement
		 FROM schedules WHERE instance_id = ? ORDER BY position`, instanceID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sched            vesting.Schedule
			amount, released string
			frozen           sql.NullString
		)
		if err := rows.Scan(&sched.ID, &sched.Beneficiary, &sched.Start,
			&sched.Cliff, &sched.Duration, &sched.SlicePeriod,
			&amount, &released, &sched.Revocable, &sched.Revoked,
			&sched.FirstReleasePercent, &sched.SecondReleasePercent,
			&sched.SecondReleaseTime, &sched.Tier1Released, &sched.Tier2Released,
			&sched.FromLocked, &frozen,
		); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}

		if sched.AmountTotal, err = parseAmount(amount); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", sched.ID, err)
		}
		if sched.Released, err = parseAmount(released); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", sched.ID, err)
		}
		if frozen.Valid {
			if sched.FrozenEntitlement, err = parseAmount(frozen.String); err != nil {
				return nil, fmt.Errorf("schedule %s: %w", sched.ID, err)
			}
		}

		snap.Schedules = append(snap.Schedules, &sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}

	return snap, nil
}

// Instances lists the known instance ids.
func (s *SQLiteStore) Instances(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM instances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning instance id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func parseAmount(dec string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", dec, err)
	}
	return v, nil
}

var _ Store = (*SQLiteStore)(nil)
