package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

func sampleDefinition(key string) *domain.Definition {
	now := time.Now().Truncate(time.Millisecond)
	return &domain.Definition{
		Key:  key,
		Name: "Repair Job",
		States: []string{
			"received", "diagnosing", "repairing", "done",
		},
		Transitions: map[string][]string{
			"received":   {"diagnosing"},
			"diagnosing": {"repairing"},
			"repairing":  {"done"},
		},
		InitialState:   "received",
		TerminalStates: []string{"done"},
		Validators:     []string{"parts-in-stock"},
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestDefinitionRepository_InsertAndFind(t *testing.T) {
	db := newTestDB(t)
	repo := db.DefinitionRepository()

	def := sampleDefinition("repair-job")
	require.NoError(t, repo.Insert(def))
	require.NotZero(t, def.ID)

	found, err := repo.FindByKey("repair-job")
	require.NoError(t, err)
	assert.Equal(t, def.ID, found.ID)
	assert.Equal(t, def.States, found.States)
	assert.Equal(t, def.Transitions, found.Transitions)
	assert.Equal(t, def.TerminalStates, found.TerminalStates)
	assert.Equal(t, def.Validators, found.Validators)
	assert.True(t, found.Active)
	assert.Equal(t, def.CreatedAt.UnixMilli(), found.CreatedAt.UnixMilli())

	byID, err := repo.FindByID(def.ID)
	require.NoError(t, err)
	assert.Equal(t, "repair-job", byID.Key)
}

func TestDefinitionRepository_DuplicateKey(t *testing.T) {
	db := newTestDB(t)
	repo := db.DefinitionRepository()

	require.NoError(t, repo.Insert(sampleDefinition("repair-job")))

	err := repo.Insert(sampleDefinition("repair-job"))
	var existsErr *domain.DefinitionExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, "repair-job", existsErr.Key)
}

func TestDefinitionRepository_FindMissing(t *testing.T) {
	db := newTestDB(t)

	_, err := db.DefinitionRepository().FindByKey("nope")
	var notFound *domain.DefinitionNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDefinitionRepository_Update(t *testing.T) {
	db := newTestDB(t)
	repo := db.DefinitionRepository()

	def := sampleDefinition("repair-job")
	require.NoError(t, repo.Insert(def))

	def.Name = "Repair Job v2"
	def.States = append(def.States, "waiting_parts")
	def.Transitions["diagnosing"] = append(def.Transitions["diagnosing"], "waiting_parts")
	def.Transitions["waiting_parts"] = []string{"repairing"}
	require.NoError(t, repo.Update(def))

	found, err := repo.FindByKey("repair-job")
	require.NoError(t, err)
	assert.Equal(t, "Repair Job v2", found.Name)
	assert.Contains(t, found.States, "waiting_parts")

	missing := sampleDefinition("ghost")
	var notFound *domain.DefinitionNotFoundError
	require.ErrorAs(t, repo.Update(missing), &notFound)
}

func TestDefinitionRepository_ListFiltersInactive(t *testing.T) {
	db := newTestDB(t)
	repo := db.DefinitionRepository()

	require.NoError(t, repo.Insert(sampleDefinition("alpha")))
	require.NoError(t, repo.Insert(sampleDefinition("beta")))
	require.NoError(t, repo.SetActive("beta", false))

	active, err := repo.List(false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "alpha", active[0].Key)

	all, err := repo.List(true)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDefinitionRepository_InstanceCount(t *testing.T) {
	db := newTestDB(t)
	repo := db.DefinitionRepository()

	def := sampleDefinition("repair-job")
	require.NoError(t, repo.Insert(def))

	count, err := repo.InstanceCount(def.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	inst := sampleInstance(def)
	require.NoError(t, db.InstanceRepository().Insert(inst))

	count, err = repo.InstanceCount(def.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
