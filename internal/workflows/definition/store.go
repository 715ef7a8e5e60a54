// Package definition manages workflow definitions: registration with
// graph validation, lookups through a read cache, freeze enforcement
// once instances exist, and loading from the YAML authoring format.
package definition

import (
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/flowstate/internal/log"
	"github.com/zjrosen/flowstate/internal/workflows/domain"
	"github.com/zjrosen/flowstate/internal/workflows/graph"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Store validates and publishes workflow definitions. Definitions are
// effectively immutable once published: Update succeeds only while no
// instance references the definition, so running workflows always see
// the graph they were started against.
type Store struct {
	repo  domain.DefinitionRepository
	cache *gocache.Cache
}

// NewStore creates a definition store over the given repository.
func NewStore(repo domain.DefinitionRepository) *Store {
	return &Store{
		repo:  repo,
		cache: gocache.New(cacheTTL, cacheCleanup),
	}
}

// Register validates the definition's graph and persists it. An invalid
// graph fails with InvalidGraphError carrying every violation; a taken
// key fails with DefinitionExistsError.
func (s *Store) Register(def *domain.Definition) error {
	violations := graph.Validate(def.States, def.Transitions, def.InitialState, def.TerminalStates)
	if len(violations) > 0 {
		log.Warn(log.CatDefinition, "Refusing to register invalid graph",
			"key", def.Key, "violations", len(violations))
		return &domain.InvalidGraphError{Key: def.Key, Violations: violations}
	}

	now := time.Now()
	def.Active = true
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.repo.Insert(def); err != nil {
		return fmt.Errorf("registering definition %q: %w", def.Key, err)
	}

	s.cache.Delete(def.Key)
	log.Info(log.CatDefinition, "Registered workflow definition",
		"key", def.Key, "states", len(def.States))
	return nil
}

// Get retrieves a definition by key, consulting the read cache first.
// Callers receive their own copy; mutating it never reaches the cache
// or the repository.
func (s *Store) Get(key string) (*domain.Definition, error) {
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*domain.Definition).Clone(), nil
	}

	def, err := s.repo.FindByKey(key)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, def.Clone(), gocache.DefaultExpiration)
	return def, nil
}

// GetByID retrieves a definition by its internal ID, bypassing the
// key-indexed cache.
func (s *Store) GetByID(id int64) (*domain.Definition, error) {
	return s.repo.FindByID(id)
}

// List returns registered definitions ordered by key.
func (s *Store) List(includeInactive bool) ([]*domain.Definition, error) {
	return s.repo.List(includeInactive)
}

// Update replaces a published definition. Once the definition is
// referenced by at least one instance the graph is frozen and Update
// fails with DefinitionFrozenError; callers evolve a workflow by
// registering a new definition under a new key. Re-publishing an
// identical graph is a no-op for the graph fields and only refreshes
// name, validators, and timestamps.
func (s *Store) Update(def *domain.Definition) error {
	current, err := s.repo.FindByKey(def.Key)
	if err != nil {
		return err
	}

	if !current.GraphEquals(def) {
		count, err := s.repo.InstanceCount(current.ID)
		if err != nil {
			return fmt.Errorf("counting instances for %q: %w", def.Key, err)
		}
		if count > 0 {
			return &domain.DefinitionFrozenError{Key: def.Key, Instances: count}
		}
	}

	violations := graph.Validate(def.States, def.Transitions, def.InitialState, def.TerminalStates)
	if len(violations) > 0 {
		return &domain.InvalidGraphError{Key: def.Key, Violations: violations}
	}

	def.ID = current.ID
	def.Active = current.Active
	def.CreatedAt = current.CreatedAt
	def.UpdatedAt = time.Now()

	if err := s.repo.Update(def); err != nil {
		return fmt.Errorf("updating definition %q: %w", def.Key, err)
	}

	s.cache.Delete(def.Key)
	log.Info(log.CatDefinition, "Updated workflow definition", "key", def.Key)
	return nil
}

// Deactivate flips the active flag so no new instances can be started
// against the definition. Existing instances and their history are
// unaffected.
func (s *Store) Deactivate(key string) error {
	if err := s.repo.SetActive(key, false); err != nil {
		return err
	}
	s.cache.Delete(key)
	log.Info(log.CatDefinition, "Deactivated workflow definition", "key", key)
	return nil
}

// Activate re-enables a deactivated definition for new instances.
func (s *Store) Activate(key string) error {
	if err := s.repo.SetActive(key, true); err != nil {
		return err
	}
	s.cache.Delete(key)
	log.Info(log.CatDefinition, "Activated workflow definition", "key", key)
	return nil
}
