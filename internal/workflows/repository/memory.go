// Package repository provides in-memory implementations of the workflow
// repository contracts. They back the engine's tests and let callers embed
// the engine without a SQLite database; semantics match the sqlite
// implementations, including optimistic locking and the append-only
// ledger surface.
package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

// MemoryStore holds definitions, instances, and the transition ledger in
// process memory behind a single mutex. Repositories returned by its
// accessor methods share the store, which is what lets the ledger commit
// a record and the instance cache update as one atomic unit.
type MemoryStore struct {
	mu sync.Mutex

	definitions map[string]*domain.Definition // by key
	instances   map[string]*domain.Instance   // by GUID
	history     map[int64][]*domain.TransitionRecord

	nextDefinitionID int64
	nextInstanceID   int64
	nextRecordID     int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		definitions: make(map[string]*domain.Definition),
		instances:   make(map[string]*domain.Instance),
		history:     make(map[int64][]*domain.TransitionRecord),
	}
}

// Definitions returns the store's definition repository.
func (s *MemoryStore) Definitions() domain.DefinitionRepository {
	return &memoryDefinitionRepository{store: s}
}

// Instances returns the store's instance repository.
func (s *MemoryStore) Instances() domain.InstanceRepository {
	return &memoryInstanceRepository{store: s}
}

// Ledger returns the store's append-only transition ledger.
func (s *MemoryStore) Ledger() domain.Ledger {
	return &memoryLedger{store: s}
}

// ---------------------------------------------------------------------------
// Definition repository
// ---------------------------------------------------------------------------

type memoryDefinitionRepository struct {
	store *MemoryStore
}

var _ domain.DefinitionRepository = (*memoryDefinitionRepository)(nil)

func (r *memoryDefinitionRepository) Insert(def *domain.Definition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.definitions[def.Key]; exists {
		return &domain.DefinitionExistsError{Key: def.Key}
	}
	r.store.nextDefinitionID++
	def.ID = r.store.nextDefinitionID
	r.store.definitions[def.Key] = def.Clone()
	return nil
}

func (r *memoryDefinitionRepository) Update(def *domain.Definition) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.definitions[def.Key]; !exists {
		return &domain.DefinitionNotFoundError{Key: def.Key}
	}
	r.store.definitions[def.Key] = def.Clone()
	return nil
}

func (r *memoryDefinitionRepository) FindByKey(key string) (*domain.Definition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	def, ok := r.store.definitions[key]
	if !ok {
		return nil, &domain.DefinitionNotFoundError{Key: key}
	}
	return def.Clone(), nil
}

func (r *memoryDefinitionRepository) FindByID(id int64) (*domain.Definition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, def := range r.store.definitions {
		if def.ID == id {
			return def.Clone(), nil
		}
	}
	return nil, &domain.DefinitionNotFoundError{Key: ""}
}

func (r *memoryDefinitionRepository) List(includeInactive bool) ([]*domain.Definition, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var defs []*domain.Definition
	for _, def := range r.store.definitions {
		if !includeInactive && !def.Active {
			continue
		}
		defs = append(defs, def.Clone())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })
	return defs, nil
}

func (r *memoryDefinitionRepository) SetActive(key string, active bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	def, ok := r.store.definitions[key]
	if !ok {
		return &domain.DefinitionNotFoundError{Key: key}
	}
	def.Active = active
	return nil
}

func (r *memoryDefinitionRepository) InstanceCount(definitionID int64) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var count int64
	for _, inst := range r.store.instances {
		if inst.DefinitionID == definitionID {
			count++
		}
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Instance repository
// ---------------------------------------------------------------------------

type memoryInstanceRepository struct {
	store *MemoryStore
}

var _ domain.InstanceRepository = (*memoryInstanceRepository)(nil)

func (r *memoryInstanceRepository) Insert(inst *domain.Instance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.nextInstanceID++
	inst.ID = r.store.nextInstanceID
	r.store.instances[inst.GUID] = inst.Clone()
	return nil
}

func (r *memoryInstanceRepository) FindByGUID(guid string) (*domain.Instance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	inst, ok := r.store.instances[guid]
	if !ok {
		return nil, &domain.InstanceNotFoundError{GUID: guid}
	}
	return inst.Clone(), nil
}

func (r *memoryInstanceRepository) FindBySubject(subject domain.Subject) ([]*domain.Instance, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var out []*domain.Instance
	for _, inst := range r.store.instances {
		if inst.Subject == subject {
			out = append(out, inst.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// ---------------------------------------------------------------------------
// Ledger
// ---------------------------------------------------------------------------

type memoryLedger struct {
	store *MemoryStore
}

var _ domain.Ledger = (*memoryLedger)(nil)

// Append commits the record and advances the instance cache atomically
// under the store mutex. The version check mirrors the sqlite
// implementation's compare-and-swap on the instances row.
func (l *memoryLedger) Append(inst *domain.Instance, rec *domain.TransitionRecord) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	stored, ok := l.store.instances[inst.GUID]
	if !ok {
		return &domain.InstanceNotFoundError{GUID: inst.GUID}
	}
	if stored.Version != inst.Version {
		return &domain.ConcurrentModificationError{GUID: inst.GUID, Version: inst.Version}
	}

	l.store.nextRecordID++
	rec.ID = l.store.nextRecordID
	rec.InstanceID = stored.ID
	l.store.history[stored.ID] = append(l.store.history[stored.ID], rec.Clone())

	stored.State = rec.ToState
	stored.Version++
	stored.UpdatedAt = rec.RecordedAt
	if inst.EndedAt != nil {
		t := *inst.EndedAt
		stored.EndedAt = &t
	}

	// Reflect the committed row back to the caller.
	*inst = *stored.Clone()
	return nil
}

func (l *memoryLedger) History(instanceID int64) ([]*domain.TransitionRecord, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	records := l.store.history[instanceID]
	out := make([]*domain.TransitionRecord, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out, nil
}

func (l *memoryLedger) AsOf(instanceID int64, at time.Time) (*domain.TransitionRecord, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	var latest *domain.TransitionRecord
	for _, rec := range l.store.history[instanceID] {
		if rec.EffectiveAt.After(at) {
			continue
		}
		if latest == nil || rec.EffectiveAt.After(latest.EffectiveAt) ||
			(rec.EffectiveAt.Equal(latest.EffectiveAt) && rec.ID > latest.ID) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	return latest.Clone(), nil
}

func (l *memoryLedger) RecordedBetween(instanceID int64, from, to time.Time) ([]*domain.TransitionRecord, error) {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	var out []*domain.TransitionRecord
	for _, rec := range l.store.history[instanceID] {
		if rec.RecordedAt.Before(from) || rec.RecordedAt.After(to) {
			continue
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}
