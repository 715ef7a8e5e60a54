// Package engine executes workflow transitions. It is the only write path
// for instance state: every state change is validated against the owning
// definition's graph, stamped with dual timestamps, appended to the audit
// ledger, and reflected into the instance's cached state as one atomic
// unit.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/flowstate/internal/log"
	"github.com/zjrosen/flowstate/internal/workflows/definition"
	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

const tracerName = "github.com/zjrosen/flowstate/internal/workflows/engine"

// Engine validates and commits workflow transitions.
type Engine struct {
	definitions *definition.Store
	instances   domain.InstanceRepository
	ledger      domain.Ledger
	validators  *ValidatorRegistry
	clock       *domain.Clock
	tracer      trace.Tracer
}

// New creates a transition engine. The validator registry may be shared
// across engines; a nil registry means no custom validators are available
// and definitions referencing any will fail at transition time.
func New(defs *definition.Store, instances domain.InstanceRepository, ledger domain.Ledger, validators *ValidatorRegistry) *Engine {
	if validators == nil {
		validators = NewValidatorRegistry()
	}
	return &Engine{
		definitions: defs,
		instances:   instances,
		ledger:      ledger,
		validators:  validators,
		clock:       domain.NewClock(),
		tracer:      otel.Tracer(tracerName),
	}
}

// WithClock replaces the engine's recorded-time source. Used in tests.
func (e *Engine) WithClock(clock *domain.Clock) *Engine {
	e.clock = clock
	return e
}

// StartRequest describes a new instance to create.
type StartRequest struct {
	DefinitionKey string
	Subject       domain.Subject
	Actor         string
	Metadata      map[string]any
}

// StartInstance creates an instance of a definition at its initial state.
// The definition must be active; the subject pair is stored verbatim and
// never dereferenced.
func (e *Engine) StartInstance(ctx context.Context, req StartRequest) (*domain.Instance, error) {
	_, span := e.tracer.Start(ctx, "engine.StartInstance", trace.WithAttributes(
		attribute.String("workflow.definition", req.DefinitionKey),
		attribute.String("workflow.subject.kind", req.Subject.Kind),
	))
	defer span.End()

	def, err := e.definitions.Get(req.DefinitionKey)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !def.Active {
		err := &domain.DefinitionInactiveError{Key: def.Key}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := e.clock.RecordedNow()
	inst := &domain.Instance{
		GUID:          uuid.NewString(),
		DefinitionID:  def.ID,
		DefinitionKey: def.Key,
		Subject:       req.Subject,
		State:         def.InitialState,
		CreatedBy:     req.Actor,
		Metadata:      req.Metadata,
		StartedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.instances.Insert(inst); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("creating instance of %q: %w", def.Key, err)
	}

	span.SetAttributes(attribute.String("workflow.instance", inst.GUID))
	log.Info(log.CatEngine, "Started workflow instance",
		"definition", def.Key, "instance", inst.GUID, "state", inst.State)
	return inst, nil
}

// TransitionRequest describes one attempted state change.
type TransitionRequest struct {
	InstanceGUID string
	ToState      string

	// Actor is recorded verbatim; the engine never authenticates it.
	Actor string

	// EffectiveAt is the business time of the transition. Zero means now.
	// Past and future values are both legal: backdating corrects the
	// business record without falsifying the audit trail.
	EffectiveAt time.Time

	// OverrideWarnings commits despite soft validator warnings. The
	// overridden warnings are preserved in the record's metadata.
	OverrideWarnings bool

	Metadata map[string]any
}

// Transition validates and commits a state change, returning the
// appended record. Failures are local and leave the instance untouched;
// only ConcurrentModificationError is worth retrying.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (*domain.TransitionRecord, error) {
	_, span := e.tracer.Start(ctx, "engine.Transition", trace.WithAttributes(
		attribute.String("workflow.instance", req.InstanceGUID),
		attribute.String("workflow.to_state", req.ToState),
	))
	defer span.End()

	rec, err := e.transition(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("workflow.from_state", rec.FromState))
	return rec, nil
}

func (e *Engine) transition(req TransitionRequest) (*domain.TransitionRecord, error) {
	inst, err := e.instances.FindByGUID(req.InstanceGUID)
	if err != nil {
		return nil, err
	}
	def, err := e.definitions.GetByID(inst.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("loading definition for instance %q: %w", inst.GUID, err)
	}

	if def.IsTerminal(inst.State) {
		return nil, &domain.InstanceTerminatedError{GUID: inst.GUID, State: inst.State}
	}
	if !contains(def.AllowedFrom(inst.State), req.ToState) {
		return nil, &domain.IllegalTransitionError{GUID: inst.GUID, FromState: inst.State, ToState: req.ToState}
	}

	blocks, warnings, err := e.runValidators(def, inst, req.ToState)
	if err != nil {
		return nil, err
	}
	if len(blocks) > 0 {
		return nil, &domain.TransitionBlockedError{Reasons: blocks}
	}
	if len(warnings) > 0 && !req.OverrideWarnings {
		return nil, &domain.TransitionBlockedError{Reasons: warnings, Soft: true}
	}

	effectiveAt := req.EffectiveAt
	recordedAt := e.clock.RecordedNow()
	if effectiveAt.IsZero() {
		effectiveAt = recordedAt
	}

	metadata := req.Metadata
	if len(warnings) > 0 {
		metadata = cloneMetadata(metadata)
		metadata["overridden_warnings"] = warnings
	}

	rec := &domain.TransitionRecord{
		GUID:        uuid.NewString(),
		InstanceID:  inst.ID,
		FromState:   inst.State,
		ToState:     req.ToState,
		Actor:       req.Actor,
		EffectiveAt: effectiveAt,
		RecordedAt:  recordedAt,
		Metadata:    metadata,
	}

	if def.IsTerminal(req.ToState) {
		ended := recordedAt
		inst.EndedAt = &ended
	}

	if err := e.ledger.Append(inst, rec); err != nil {
		return nil, err
	}

	log.Info(log.CatEngine, "Committed transition",
		"instance", inst.GUID, "from", rec.FromState, "to", rec.ToState, "actor", rec.Actor)
	return rec, nil
}

// AllowedTransitions returns the legal target states from the instance's
// current state. Terminal states yield an empty result.
func (e *Engine) AllowedTransitions(instanceGUID string) ([]string, error) {
	inst, err := e.instances.FindByGUID(instanceGUID)
	if err != nil {
		return nil, err
	}
	def, err := e.definitions.GetByID(inst.DefinitionID)
	if err != nil {
		return nil, err
	}
	return def.AllowedFrom(inst.State), nil
}

// ValidateTransition is a dry run: it reports whether a transition would
// be allowed along with validator blocks and warnings, committing
// nothing. Structural rejections (terminal state, illegal edge) surface
// as blocks.
func (e *Engine) ValidateTransition(instanceGUID, toState string) (allowed bool, blocks, warnings []string, err error) {
	inst, err := e.instances.FindByGUID(instanceGUID)
	if err != nil {
		return false, nil, nil, err
	}
	def, err := e.definitions.GetByID(inst.DefinitionID)
	if err != nil {
		return false, nil, nil, err
	}

	if def.IsTerminal(inst.State) {
		return false, []string{fmt.Sprintf("cannot transition from terminal state %q", inst.State)}, nil, nil
	}
	if !contains(def.AllowedFrom(inst.State), toState) {
		return false, []string{fmt.Sprintf("transition from %q to %q not allowed", inst.State, toState)}, nil, nil
	}

	blocks, warnings, err = e.runValidators(def, inst, toState)
	if err != nil {
		return false, nil, nil, err
	}
	return len(blocks) == 0 && len(warnings) == 0, blocks, warnings, nil
}

// History returns the instance's committed transitions in append order.
func (e *Engine) History(instanceGUID string) ([]*domain.TransitionRecord, error) {
	inst, err := e.instances.FindByGUID(instanceGUID)
	if err != nil {
		return nil, err
	}
	return e.ledger.History(inst.ID)
}

// StateAsOf answers what state the instance was in at business time T.
// The second result is false when the instance had no committed
// transitions as of T, meaning it had not yet started.
func (e *Engine) StateAsOf(instanceGUID string, at time.Time) (string, bool, error) {
	inst, err := e.instances.FindByGUID(instanceGUID)
	if err != nil {
		return "", false, err
	}
	rec, err := e.ledger.AsOf(inst.ID, at)
	if err != nil {
		return "", false, err
	}
	if rec == nil {
		return "", false, nil
	}
	return rec.ToState, true, nil
}

// HistoryRecordedBetween returns the instance's records whose system
// recorded time falls within [from, to].
func (e *Engine) HistoryRecordedBetween(instanceGUID string, from, to time.Time) ([]*domain.TransitionRecord, error) {
	inst, err := e.instances.FindByGUID(instanceGUID)
	if err != nil {
		return nil, err
	}
	return e.ledger.RecordedBetween(inst.ID, from, to)
}

// Instance retrieves an instance by GUID.
func (e *Engine) Instance(instanceGUID string) (*domain.Instance, error) {
	return e.instances.FindByGUID(instanceGUID)
}

// InstancesForSubject returns all instances bound to the subject.
func (e *Engine) InstancesForSubject(subject domain.Subject) ([]*domain.Instance, error) {
	return e.instances.FindBySubject(subject)
}

func (e *Engine) runValidators(def *domain.Definition, inst *domain.Instance, toState string) (blocks, warnings []string, err error) {
	validators, err := e.validators.Resolve(def.Validators)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range validators {
		b, w := v.Validate(inst, inst.State, toState)
		blocks = append(blocks, b...)
		warnings = append(warnings, w...)
	}
	return blocks, warnings, nil
}

func contains(states []string, s string) bool {
	for _, st := range states {
		if st == s {
			return true
		}
	}
	return false
}

func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
