package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

// definitionRow mirrors the definitions table. JSON columns hold the
// graph shape so definitions round-trip without a schema change per
// workflow.
type definitionRow struct {
	ID             int64
	Key            string
	Name           string
	States         string
	Transitions    string
	InitialState   string
	TerminalStates string
	Validators     string
	Active         int64
	CreatedAt      int64
	UpdatedAt      int64
}

func (r *definitionRow) toDomain() (*domain.Definition, error) {
	def := &domain.Definition{
		ID:           r.ID,
		Key:          r.Key,
		Name:         r.Name,
		InitialState: r.InitialState,
		Active:       r.Active != 0,
		CreatedAt:    time.UnixMilli(r.CreatedAt),
		UpdatedAt:    time.UnixMilli(r.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(r.States), &def.States); err != nil {
		return nil, fmt.Errorf("failed to decode states for definition %s: %w", r.Key, err)
	}
	if err := json.Unmarshal([]byte(r.Transitions), &def.Transitions); err != nil {
		return nil, fmt.Errorf("failed to decode transitions for definition %s: %w", r.Key, err)
	}
	if err := json.Unmarshal([]byte(r.TerminalStates), &def.TerminalStates); err != nil {
		return nil, fmt.Errorf("failed to decode terminal states for definition %s: %w", r.Key, err)
	}
	if err := json.Unmarshal([]byte(r.Validators), &def.Validators); err != nil {
		return nil, fmt.Errorf("failed to decode validators for definition %s: %w", r.Key, err)
	}
	return def, nil
}

func definitionToRow(def *domain.Definition) (*definitionRow, error) {
	states, err := json.Marshal(emptyIfNil(def.States))
	if err != nil {
		return nil, fmt.Errorf("failed to encode states: %w", err)
	}
	transitions, err := json.Marshal(def.Transitions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transitions: %w", err)
	}
	if def.Transitions == nil {
		transitions = []byte("{}")
	}
	terminals, err := json.Marshal(emptyIfNil(def.TerminalStates))
	if err != nil {
		return nil, fmt.Errorf("failed to encode terminal states: %w", err)
	}
	validators, err := json.Marshal(emptyIfNil(def.Validators))
	if err != nil {
		return nil, fmt.Errorf("failed to encode validators: %w", err)
	}
	return &definitionRow{
		ID:             def.ID,
		Key:            def.Key,
		Name:           def.Name,
		States:         string(states),
		Transitions:    string(transitions),
		InitialState:   def.InitialState,
		TerminalStates: string(terminals),
		Validators:     string(validators),
		Active:         boolToInt(def.Active),
		CreatedAt:      def.CreatedAt.UnixMilli(),
		UpdatedAt:      def.UpdatedAt.UnixMilli(),
	}, nil
}

// instanceRow mirrors the instances table.
type instanceRow struct {
	ID            int64
	GUID          string
	DefinitionID  int64
	DefinitionKey string
	SubjectKind   string
	SubjectID     string
	State         string
	Version       int64
	CreatedBy     string
	Metadata      string
	StartedAt     int64
	EndedAt       sql.NullInt64
	UpdatedAt     int64
}

func (r *instanceRow) toDomain() (*domain.Instance, error) {
	inst := &domain.Instance{
		ID:            r.ID,
		GUID:          r.GUID,
		DefinitionID:  r.DefinitionID,
		DefinitionKey: r.DefinitionKey,
		Subject:       domain.Subject{Kind: r.SubjectKind, ID: r.SubjectID},
		State:         r.State,
		Version:       r.Version,
		CreatedBy:     r.CreatedBy,
		StartedAt:     time.UnixMilli(r.StartedAt),
		UpdatedAt:     time.UnixMilli(r.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(r.Metadata), &inst.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for instance %s: %w", r.GUID, err)
	}
	if r.EndedAt.Valid {
		t := time.UnixMilli(r.EndedAt.Int64)
		inst.EndedAt = &t
	}
	return inst, nil
}

// transitionRow mirrors the transitions table.
type transitionRow struct {
	ID          int64
	GUID        string
	InstanceID  int64
	FromState   string
	ToState     string
	Actor       string
	EffectiveAt int64
	RecordedAt  int64
	Metadata    string
}

func (r *transitionRow) toDomain() (*domain.TransitionRecord, error) {
	rec := &domain.TransitionRecord{
		ID:          r.ID,
		GUID:        r.GUID,
		InstanceID:  r.InstanceID,
		FromState:   r.FromState,
		ToState:     r.ToState,
		Actor:       r.Actor,
		EffectiveAt: time.UnixMilli(r.EffectiveAt),
		RecordedAt:  time.UnixMilli(r.RecordedAt),
	}
	if err := json.Unmarshal([]byte(r.Metadata), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata for transition %s: %w", r.GUID, err)
	}
	return rec, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullMilli(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
