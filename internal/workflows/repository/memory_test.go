package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

func sampleDefinition(key string) *domain.Definition {
	return &domain.Definition{
		Key:            key,
		Name:           "Sample",
		States:         []string{"a", "b", "c"},
		Transitions:    map[string][]string{"a": {"b"}, "b": {"c"}},
		InitialState:   "a",
		TerminalStates: []string{"c"},
		Active:         true,
		CreatedAt:      time.Unix(100, 0),
		UpdatedAt:      time.Unix(100, 0),
	}
}

func TestMemoryDefinitionRepository_InsertAndFind(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Definitions()

	def := sampleDefinition("repair_job")
	require.NoError(t, repo.Insert(def))
	require.NotZero(t, def.ID, "insert should assign an ID")

	found, err := repo.FindByKey("repair_job")
	require.NoError(t, err)
	assert.Equal(t, def.ID, found.ID)
	assert.Equal(t, []string{"a", "b", "c"}, found.States)

	// Mutating the returned copy must not touch the stored definition.
	found.States[0] = "mutated"
	again, err := repo.FindByKey("repair_job")
	require.NoError(t, err)
	assert.Equal(t, "a", again.States[0])
}

func TestMemoryDefinitionRepository_DuplicateKey(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Definitions()

	require.NoError(t, repo.Insert(sampleDefinition("dup")))

	err := repo.Insert(sampleDefinition("dup"))
	var exists *domain.DefinitionExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "dup", exists.Key)
}

func TestMemoryDefinitionRepository_ListFiltersInactive(t *testing.T) {
	store := NewMemoryStore()
	repo := store.Definitions()

	require.NoError(t, repo.Insert(sampleDefinition("active_one")))
	inactive := sampleDefinition("inactive_one")
	require.NoError(t, repo.Insert(inactive))
	require.NoError(t, repo.SetActive("inactive_one", false))

	active, err := repo.List(false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "active_one", active[0].Key)

	all, err := repo.List(true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemoryInstanceRepository_FindBySubject(t *testing.T) {
	store := NewMemoryStore()
	defs := store.Definitions()
	instances := store.Instances()

	def := sampleDefinition("visits")
	require.NoError(t, defs.Insert(def))

	subject := domain.Subject{Kind: "patient", ID: "p-1"}
	for _, guid := range []string{"i-1", "i-2"} {
		require.NoError(t, instances.Insert(&domain.Instance{
			GUID:          guid,
			DefinitionID:  def.ID,
			DefinitionKey: def.Key,
			Subject:       subject,
			State:         def.InitialState,
		}))
	}
	require.NoError(t, instances.Insert(&domain.Instance{
		GUID:          "other",
		DefinitionID:  def.ID,
		DefinitionKey: def.Key,
		Subject:       domain.Subject{Kind: "patient", ID: "p-2"},
		State:         def.InitialState,
	}))

	found, err := instances.FindBySubject(subject)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "i-2", found[0].GUID, "newest first")

	count, err := defs.InstanceCount(def.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMemoryLedger_AppendAdvancesInstance(t *testing.T) {
	store := NewMemoryStore()
	instances := store.Instances()
	ledger := store.Ledger()

	inst := &domain.Instance{GUID: "i-1", State: "a"}
	require.NoError(t, instances.Insert(inst))

	rec := &domain.TransitionRecord{
		GUID:        "r-1",
		FromState:   "a",
		ToState:     "b",
		Actor:       "tester",
		EffectiveAt: time.Unix(200, 0),
		RecordedAt:  time.Unix(200, 0),
	}
	require.NoError(t, ledger.Append(inst, rec))

	assert.Equal(t, "b", inst.State)
	assert.Equal(t, int64(1), inst.Version)
	require.NotZero(t, rec.ID)

	stored, err := instances.FindByGUID("i-1")
	require.NoError(t, err)
	assert.Equal(t, "b", stored.State)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMemoryLedger_VersionMismatch(t *testing.T) {
	store := NewMemoryStore()
	instances := store.Instances()
	ledger := store.Ledger()

	inst := &domain.Instance{GUID: "i-1", State: "a"}
	require.NoError(t, instances.Insert(inst))

	stale := inst.Clone()

	require.NoError(t, ledger.Append(inst, &domain.TransitionRecord{
		GUID: "r-1", FromState: "a", ToState: "b",
		EffectiveAt: time.Unix(1, 0), RecordedAt: time.Unix(1, 0),
	}))

	err := ledger.Append(stale, &domain.TransitionRecord{
		GUID: "r-2", FromState: "a", ToState: "b",
		EffectiveAt: time.Unix(2, 0), RecordedAt: time.Unix(2, 0),
	})
	var cme *domain.ConcurrentModificationError
	require.ErrorAs(t, err, &cme)

	// The failed attempt must leave no trace in the history.
	history, err := ledger.History(inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "r-1", history[0].GUID)
}

func TestMemoryLedger_HistoryAppendOrder(t *testing.T) {
	store := NewMemoryStore()
	instances := store.Instances()
	ledger := store.Ledger()

	inst := &domain.Instance{GUID: "i-1", State: "a"}
	require.NoError(t, instances.Insert(inst))

	// Backdated effective times must not disturb append order.
	times := []time.Time{time.Unix(300, 0), time.Unix(100, 0), time.Unix(200, 0)}
	states := []string{"b", "c", "d"}
	from := "a"
	for i, to := range states {
		require.NoError(t, ledger.Append(inst, &domain.TransitionRecord{
			GUID:        to,
			FromState:   from,
			ToState:     to,
			EffectiveAt: times[i],
			RecordedAt:  time.Unix(int64(400+i), 0),
		}))
		from = to
	}

	history, err := ledger.History(inst.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "b", history[0].ToState)
	assert.Equal(t, "c", history[1].ToState)
	assert.Equal(t, "d", history[2].ToState)
}

func TestMemoryLedger_AsOf(t *testing.T) {
	store := NewMemoryStore()
	instances := store.Instances()
	ledger := store.Ledger()

	inst := &domain.Instance{GUID: "i-1", State: "a"}
	require.NoError(t, instances.Insert(inst))

	require.NoError(t, ledger.Append(inst, &domain.TransitionRecord{
		GUID: "r-1", FromState: "a", ToState: "b",
		EffectiveAt: time.Unix(100, 0), RecordedAt: time.Unix(500, 0),
	}))
	require.NoError(t, ledger.Append(inst, &domain.TransitionRecord{
		GUID: "r-2", FromState: "b", ToState: "c",
		EffectiveAt: time.Unix(300, 0), RecordedAt: time.Unix(501, 0),
	}))

	rec, err := ledger.AsOf(inst.ID, time.Unix(50, 0))
	require.NoError(t, err)
	assert.Nil(t, rec, "instance had not started as of T")

	rec, err = ledger.AsOf(inst.ID, time.Unix(200, 0))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "b", rec.ToState)

	rec, err = ledger.AsOf(inst.ID, time.Unix(300, 0))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "c", rec.ToState, "boundary is inclusive")

	// Idempotent: same T, same answer.
	again, err := ledger.AsOf(inst.ID, time.Unix(300, 0))
	require.NoError(t, err)
	assert.Equal(t, rec.GUID, again.GUID)
}

func TestMemoryLedger_RecordedBetween(t *testing.T) {
	store := NewMemoryStore()
	instances := store.Instances()
	ledger := store.Ledger()

	inst := &domain.Instance{GUID: "i-1", State: "a"}
	require.NoError(t, instances.Insert(inst))

	require.NoError(t, ledger.Append(inst, &domain.TransitionRecord{
		GUID: "r-1", FromState: "a", ToState: "b",
		EffectiveAt: time.Unix(999, 0), RecordedAt: time.Unix(100, 0),
	}))
	require.NoError(t, ledger.Append(inst, &domain.TransitionRecord{
		GUID: "r-2", FromState: "b", ToState: "c",
		EffectiveAt: time.Unix(1, 0), RecordedAt: time.Unix(200, 0),
	}))

	// Recorded-time window is independent of effective time.
	recs, err := ledger.RecordedBetween(inst.ID, time.Unix(150, 0), time.Unix(250, 0))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "r-2", recs[0].GUID)
}
