package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/oralsim/internal/entity"
	"github.com/roach88/oralsim/internal/simerr"
	"github.com/roach88/oralsim/internal/sink"
)

// ErrRunNotFound is returned when a run ID is not in the store.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns the run row for id.
func (s *Store) ReadRun(ctx context.Context, id string) (sink.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seed, entities, workers, started_at, params
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return sink.Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return sink.Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns every stored run, most recent first.
//
// Returns an empty slice (not nil) if the store holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]sink.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seed, entities, workers, started_at, params
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []sink.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (sink.Run, error) {
	var (
		run     sink.Run
		seed    int64
		started string
	)
	if err := row.Scan(&run.ID, &seed, &run.Entities, &run.Workers, &started, &run.Params); err != nil {
		return sink.Run{}, err
	}
	run.Seed = uint64(seed)
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return sink.Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	run.StartedAt = t
	return run, nil
}

// ReadRecords returns the records of a run ordered by entity index, with
// their natural histories and logs.
//
// Returns an empty slice (not nil) if the run has no records.
func (s *Store) ReadRecords(ctx context.Context, runID string) ([]sink.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, entity_index, entity_id, start_age, sex, smoke, alcohol, has_dentist, has_opl, opl_risk,
		       state, state_label, death_type, time_death, all_time, censored, error_code, error,
		       first_cancer, screen_detected, tx_primary, tx_recurrence, time_cancer, time_detected,
		       dental_visits, false_positives, false_negatives, digest
		FROM entities
		WHERE run_id = ?
		ORDER BY entity_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	records := []sink.Record{}
	byIndex := map[int]int{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		byIndex[rec.Index] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}

	if err := s.readNatHist(ctx, runID, records, byIndex); err != nil {
		return nil, err
	}
	if err := s.readLogs(ctx, runID, records, byIndex); err != nil {
		return nil, err
	}
	return records, nil
}

func scanRecord(row scanner) (sink.Record, error) {
	var (
		rec                               sink.Record
		sex, smoke, alcohol, risk, death  string
		code                              string
		state                             int
		timeDeath, timeCancer, timeDetect sql.NullFloat64
	)
	err := row.Scan(
		&rec.RunID, &rec.Index, &rec.EntityID, &rec.StartAge, &sex, &smoke, &alcohol, &rec.HasDentist, &rec.HasOPL, &risk,
		&state, &rec.StateLabel, &death, &timeDeath, &rec.AllTime, &rec.Censored, &code, &rec.Error,
		&rec.FirstCancer, &rec.ScreenDetected, &rec.TxPrimary, &rec.TxRecurrence, &timeCancer, &timeDetect,
		&rec.DentalVisits, &rec.FalsePositives, &rec.FalseNegatives, &rec.Digest,
	)
	if err != nil {
		return sink.Record{}, fmt.Errorf("scan entity: %w", err)
	}
	rec.Sex = entity.Sex(sex)
	rec.Smoke = entity.Smoking(smoke)
	rec.Alcohol = entity.Alcohol(alcohol)
	rec.OPLRisk = entity.OPLRisk(risk)
	rec.State = entity.State(state)
	rec.DeathType = entity.DeathType(death)
	rec.ErrorCode = simerr.Code(code)
	rec.TimeDeath = unclock(timeDeath)
	rec.TimeCancer = unclock(timeCancer)
	rec.TimeDetected = unclock(timeDetect)
	return rec, nil
}

func (s *Store) readNatHist(ctx context.Context, runID string, records []sink.Record, byIndex map[int]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_index, label, kind, detectable, time
		FROM natural_history
		WHERE run_id = ?
		ORDER BY entity_index ASC, seq ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query natural history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx, kind  int
			detectable bool
			n          entity.NatHistEntry
			t          sql.NullFloat64
		)
		if err := rows.Scan(&idx, &n.Label, &kind, &detectable, &t); err != nil {
			return fmt.Errorf("scan natural history: %w", err)
		}
		n.Status = entity.NHStatus{Kind: entity.NHKind(kind), Detectable: detectable}
		n.Time = unclock(t)
		if i, ok := byIndex[idx]; ok {
			records[i].NatHist = append(records[i].NatHist, n)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate natural history: %w", err)
	}
	return nil
}

func (s *Store) readLogs(ctx context.Context, runID string, records []sink.Record, byIndex map[int]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_index, kind, label, value, time
		FROM entity_log
		WHERE run_id = ?
		ORDER BY entity_index ASC, kind COLLATE BINARY ASC, seq ASC
	`, runID)
	if err != nil {
		return fmt.Errorf("query entity log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			idx         int
			kind, label string
			value, t    sql.NullFloat64
		)
		if err := rows.Scan(&idx, &kind, &label, &value, &t); err != nil {
			return fmt.Errorf("scan entity log: %w", err)
		}
		i, ok := byIndex[idx]
		if !ok {
			continue
		}
		rec := &records[i]
		switch kind {
		case KindEvent:
			rec.Events = append(rec.Events, entity.Event{Label: label, Time: unclock(t)})
		case KindResource:
			rec.Resources = append(rec.Resources, entity.Resource{Label: label, Time: unclock(t)})
		case KindUtility:
			rec.Utility = append(rec.Utility, entity.Utility{Label: label, Value: value.Float64, Time: unclock(t)})
		default:
			return fmt.Errorf("entity %d: unknown log kind %q", idx, kind)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate entity log: %w", err)
	}
	return nil
}

// Digests returns the record digests of a run keyed by entity index.
func (s *Store) Digests(ctx context.Context, runID string) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_index, digest FROM entities
		WHERE run_id = ?
		ORDER BY entity_index ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	out := map[int]string{}
	for rows.Next() {
		var (
			idx    int
			digest string
		)
		if err := rows.Scan(&idx, &digest); err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		out[idx] = digest
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digests: %w", err)
	}
	return out, nil
}
