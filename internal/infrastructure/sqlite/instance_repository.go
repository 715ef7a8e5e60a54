package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

// instanceRepository implements domain.InstanceRepository backed by
// SQLite. State changes are not exposed here; they flow through the
// ledger's atomic commit.
type instanceRepository struct {
	conn *sql.DB
}

var _ domain.InstanceRepository = (*instanceRepository)(nil)

func newInstanceRepository(conn *sql.DB) *instanceRepository {
	return &instanceRepository{conn: conn}
}

const instanceColumns = `i.id, i.guid, i.definition_id, d.key, i.subject_kind, i.subject_id,
	i.state, i.version, i.created_by, i.metadata, i.started_at, i.ended_at, i.updated_at`

func (r *instanceRepository) Insert(inst *domain.Instance) error {
	metadata, err := encodeMetadata(inst.Metadata)
	if err != nil {
		return err
	}

	result, err := r.conn.Exec(`
		INSERT INTO instances (guid, definition_id, subject_kind, subject_id, state, version, created_by, metadata, started_at, ended_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.GUID, inst.DefinitionID, inst.Subject.Kind, inst.Subject.ID,
		inst.State, inst.Version, inst.CreatedBy, metadata,
		inst.StartedAt.UnixMilli(), nullMilli(inst.EndedAt), inst.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert instance %s: %w", inst.GUID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get instance id: %w", err)
	}
	inst.ID = id
	return nil
}

func (r *instanceRepository) FindByGUID(guid string) (*domain.Instance, error) {
	row := r.conn.QueryRow(`
		SELECT `+instanceColumns+`
		FROM instances i JOIN definitions d ON d.id = i.definition_id
		WHERE i.guid = ?`, guid,
	)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.InstanceNotFoundError{GUID: guid}
	}
	return inst, err
}

func (r *instanceRepository) FindBySubject(subject domain.Subject) ([]*domain.Instance, error) {
	rows, err := r.conn.Query(`
		SELECT `+instanceColumns+`
		FROM instances i JOIN definitions d ON d.id = i.definition_id
		WHERE i.subject_kind = ? AND i.subject_id = ?
		ORDER BY i.id DESC`,
		subject.Kind, subject.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query instances for subject %s/%s: %w", subject.Kind, subject.ID, err)
	}
	defer func() { _ = rows.Close() }()

	var instances []*domain.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

func scanInstance(s scanner) (*domain.Instance, error) {
	var row instanceRow
	err := s.Scan(
		&row.ID, &row.GUID, &row.DefinitionID, &row.DefinitionKey,
		&row.SubjectKind, &row.SubjectID, &row.State, &row.Version,
		&row.CreatedBy, &row.Metadata, &row.StartedAt, &row.EndedAt, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}
	return row.toDomain()
}
