package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

// ledger implements domain.Ledger backed by SQLite. Appends run in a
// transaction that inserts the transition record and advances the
// instance row with a compare-and-swap on its version. Updates and
// deletes of committed records are rejected by database triggers.
type ledger struct {
	conn *sql.DB
}

var _ domain.Ledger = (*ledger)(nil)

func newLedger(conn *sql.DB) *ledger {
	return &ledger{conn: conn}
}

const transitionColumns = "id, guid, instance_id, from_state, to_state, actor, effective_at, recorded_at, metadata"

func (l *ledger) Append(inst *domain.Instance, rec *domain.TransitionRecord) error {
	metadata, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	tx, err := l.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transition commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// CAS on version first: a stale caller must not leave a record behind.
	result, err := tx.Exec(`
		UPDATE instances
		SET state = ?, version = version + 1, ended_at = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		rec.ToState, nullMilli(inst.EndedAt), rec.RecordedAt.UnixMilli(),
		inst.ID, inst.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to advance instance %s: %w", inst.GUID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check instance update: %w", err)
	}
	if affected == 0 {
		return &domain.ConcurrentModificationError{GUID: inst.GUID, Version: inst.Version}
	}

	res, err := tx.Exec(`
		INSERT INTO transitions (guid, instance_id, from_state, to_state, actor, effective_at, recorded_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.GUID, inst.ID, rec.FromState, rec.ToState, rec.Actor,
		rec.EffectiveAt.UnixMilli(), rec.RecordedAt.UnixMilli(), metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to append transition for instance %s: %w", inst.GUID, err)
	}
	recordID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transition id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition for instance %s: %w", inst.GUID, err)
	}

	rec.ID = recordID
	rec.InstanceID = inst.ID
	inst.State = rec.ToState
	inst.Version++
	inst.UpdatedAt = rec.RecordedAt
	return nil
}

func (l *ledger) History(instanceID int64) ([]*domain.TransitionRecord, error) {
	return l.queryRecords(`
		SELECT `+transitionColumns+`
		FROM transitions WHERE instance_id = ?
		ORDER BY id`, instanceID)
}

func (l *ledger) AsOf(instanceID int64, at time.Time) (*domain.TransitionRecord, error) {
	row := l.conn.QueryRow(`
		SELECT `+transitionColumns+`
		FROM transitions
		WHERE instance_id = ? AND effective_at <= ?
		ORDER BY effective_at DESC, id DESC
		LIMIT 1`,
		instanceID, at.UnixMilli(),
	)
	rec, err := scanTransition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (l *ledger) RecordedBetween(instanceID int64, from, to time.Time) ([]*domain.TransitionRecord, error) {
	return l.queryRecords(`
		SELECT `+transitionColumns+`
		FROM transitions
		WHERE instance_id = ? AND recorded_at >= ? AND recorded_at <= ?
		ORDER BY id`, instanceID, from.UnixMilli(), to.UnixMilli())
}

func (l *ledger) queryRecords(query string, args ...any) ([]*domain.TransitionRecord, error) {
	rows, err := l.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.TransitionRecord
	for rows.Next() {
		rec, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanTransition(s scanner) (*domain.TransitionRecord, error) {
	var row transitionRow
	err := s.Scan(
		&row.ID, &row.GUID, &row.InstanceID, &row.FromState, &row.ToState,
		&row.Actor, &row.EffectiveAt, &row.RecordedAt, &row.Metadata,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transition: %w", err)
	}
	return row.toDomain()
}
