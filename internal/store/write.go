package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/sink"
)

var _ sink.Sink = (*Store)(nil)

// Log kinds in the entity_log table.
const (
	KindEvent    = "event"
	KindResource = "resource"
	KindUtility  = "utility"
)

// Begin inserts the run row. Uses ON CONFLICT(id) DO NOTHING, so resuming
// a run with the same ID keeps the original row.
func (s *Store) Begin(ctx context.Context, run sink.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seed, entities, workers, started_at, params)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		int64(run.Seed),
		run.Entities,
		run.Workers,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Params,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// Write stores one entity record and its logs in a single transaction.
// A record already stored for the same run and entity index is left
// untouched.
//
// Note: the run must have been begun (foreign key constraint).
func (s *Store) Write(ctx context.Context, rec sink.Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write entity %d: %w", rec.Index, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO entities
		(run_id, entity_index, entity_id, start_age, sex, smoke, alcohol, has_dentist, has_opl, opl_risk,
		 state, state_label, death_type, time_death, all_time, censored, error_code, error,
		 first_cancer, screen_detected, tx_primary, tx_recurrence, time_cancer, time_detected,
		 dental_visits, false_positives, false_negatives, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.RunID, rec.Index, rec.EntityID, rec.StartAge,
		string(rec.Sex), string(rec.Smoke), string(rec.Alcohol), rec.HasDentist, rec.HasOPL, string(rec.OPLRisk),
		int(rec.State), rec.StateLabel, string(rec.DeathType), clock(rec.TimeDeath), rec.AllTime, rec.Censored,
		string(rec.ErrorCode), rec.Error,
		rec.FirstCancer, rec.ScreenDetected, rec.TxPrimary, rec.TxRecurrence,
		clock(rec.TimeCancer), clock(rec.TimeDetected),
		rec.DentalVisits, rec.FalsePositives, rec.FalseNegatives, rec.Digest,
	)
	if err != nil {
		return fmt.Errorf("write entity %d: %w", rec.Index, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Already stored.
		return tx.Commit()
	}

	for i, n := range rec.NatHist {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO natural_history (run_id, entity_index, seq, label, kind, detectable, time)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, rec.RunID, rec.Index, i, n.Label, int(n.Status.Kind), n.Status.Detectable, clock(n.Time)); err != nil {
			return fmt.Errorf("write entity %d natural history: %w", rec.Index, err)
		}
	}

	logs := make([]logRow, 0, len(rec.Events)+len(rec.Resources)+len(rec.Utility))
	for i, ev := range rec.Events {
		logs = append(logs, logRow{kind: KindEvent, seq: i, label: ev.Label, time: ev.Time})
	}
	for i, r := range rec.Resources {
		logs = append(logs, logRow{kind: KindResource, seq: i, label: r.Label, time: r.Time})
	}
	for i, u := range rec.Utility {
		logs = append(logs, logRow{kind: KindUtility, seq: i, label: u.Label, value: sql.NullFloat64{Float64: u.Value, Valid: true}, time: u.Time})
	}
	for _, l := range logs {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO entity_log (run_id, entity_index, kind, seq, label, value, time)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, rec.RunID, rec.Index, l.kind, l.seq, l.label, l.value, clock(l.time)); err != nil {
			return fmt.Errorf("write entity %d %s log: %w", rec.Index, l.kind, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write entity %d: %w", rec.Index, err)
	}
	return nil
}

type logRow struct {
	kind  string
	seq   int
	label string
	value sql.NullFloat64
	time  float64
}

// clock maps the unscheduled sentinel to NULL.
func clock(t float64) sql.NullFloat64 {
	if entity.IsNever(t) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: t, Valid: true}
}

// unclock maps NULL back to the unscheduled sentinel.
func unclock(v sql.NullFloat64) float64 {
	if !v.Valid {
		return entity.Never
	}
	return v.Float64
}
