package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

// definitionRepository implements domain.DefinitionRepository backed by
// SQLite.
type definitionRepository struct {
	conn *sql.DB
}

var _ domain.DefinitionRepository = (*definitionRepository)(nil)

func newDefinitionRepository(conn *sql.DB) *definitionRepository {
	return &definitionRepository{conn: conn}
}

const definitionColumns = "id, key, name, states, transitions, initial_state, terminal_states, validators, active, created_at, updated_at"

func (r *definitionRepository) Insert(def *domain.Definition) error {
	row, err := definitionToRow(def)
	if err != nil {
		return err
	}

	result, err := r.conn.Exec(`
		INSERT INTO definitions (key, name, states, transitions, initial_state, terminal_states, validators, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Key, row.Name, row.States, row.Transitions, row.InitialState,
		row.TerminalStates, row.Validators, row.Active, row.CreatedAt, row.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.DefinitionExistsError{Key: def.Key}
		}
		return fmt.Errorf("failed to insert definition %s: %w", def.Key, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get definition id: %w", err)
	}
	def.ID = id
	return nil
}

func (r *definitionRepository) Update(def *domain.Definition) error {
	row, err := definitionToRow(def)
	if err != nil {
		return err
	}

	result, err := r.conn.Exec(`
		UPDATE definitions
		SET name = ?, states = ?, transitions = ?, initial_state = ?, terminal_states = ?, validators = ?, updated_at = ?
		WHERE key = ?`,
		row.Name, row.States, row.Transitions, row.InitialState,
		row.TerminalStates, row.Validators, row.UpdatedAt, row.Key,
	)
	if err != nil {
		return fmt.Errorf("failed to update definition %s: %w", def.Key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return &domain.DefinitionNotFoundError{Key: def.Key}
	}
	return nil
}

func (r *definitionRepository) FindByKey(key string) (*domain.Definition, error) {
	row := r.conn.QueryRow(
		"SELECT "+definitionColumns+" FROM definitions WHERE key = ?", key,
	)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.DefinitionNotFoundError{Key: key}
	}
	return def, err
}

func (r *definitionRepository) FindByID(id int64) (*domain.Definition, error) {
	row := r.conn.QueryRow(
		"SELECT "+definitionColumns+" FROM definitions WHERE id = ?", id,
	)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.DefinitionNotFoundError{Key: fmt.Sprintf("id=%d", id)}
	}
	return def, err
}

func (r *definitionRepository) List(includeInactive bool) ([]*domain.Definition, error) {
	query := "SELECT " + definitionColumns + " FROM definitions"
	if !includeInactive {
		query += " WHERE active = 1"
	}
	query += " ORDER BY key"

	rows, err := r.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var defs []*domain.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *definitionRepository) SetActive(key string, active bool) error {
	result, err := r.conn.Exec(
		"UPDATE definitions SET active = ? WHERE key = ?", boolToInt(active), key,
	)
	if err != nil {
		return fmt.Errorf("failed to set active for definition %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return &domain.DefinitionNotFoundError{Key: key}
	}
	return nil
}

func (r *definitionRepository) InstanceCount(definitionID int64) (int64, error) {
	var count int64
	err := r.conn.QueryRow(
		"SELECT COUNT(*) FROM instances WHERE definition_id = ?", definitionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count instances for definition %d: %w", definitionID, err)
	}
	return count, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDefinition(s scanner) (*domain.Definition, error) {
	var row definitionRow
	err := s.Scan(
		&row.ID, &row.Key, &row.Name, &row.States, &row.Transitions,
		&row.InitialState, &row.TerminalStates, &row.Validators,
		&row.Active, &row.CreatedAt, &row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan definition: %w", err)
	}
	return row.toDomain()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
