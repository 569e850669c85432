// Package saga runs an ordered list of steps and records, in the journal, a
// high-water mark of the steps whose effects are applied. A run that stops on
// a failure can later be resumed from that mark or compensated in reverse.
package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/economato/go-order-desk/internal/journal"
)

// Step is one unit of work with the action that undoes it.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

var (
	ErrAlreadyCompleted   = errors.New("saga: already completed")
	ErrAlreadyCompensated = errors.New("saga: already compensated")
	ErrStepMismatch       = errors.New("saga: journal does not match the rebuilt steps")
)

// StepError reports the step a run stopped at. Index is also the high-water
// mark left in the journal.
type StepError struct {
	SagaID     string
	Step       string
	Index      int
	Compensate bool
	Err        error
}

func (e *StepError) Error() string {
	if e.Compensate {
		return fmt.Sprintf("saga %s: compensate %s: %v", e.SagaID, e.Step, e.Err)
	}
	return fmt.Sprintf("saga %s: step %s: %v", e.SagaID, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// JournalError reports a journal write that failed after Applied steps had
// run. The journal's own mark may lag behind Applied.
type JournalError struct {
	SagaID  string
	Applied int
	Err     error
}

func (e *JournalError) Error() string {
	return fmt.Sprintf("saga %s: %d steps applied: %v", e.SagaID, e.Applied, e.Err)
}

func (e *JournalError) Unwrap() error { return e.Err }

// Builder rebuilds the steps of a saga from the payload it was started with.
type Builder func(payload string) ([]Step, error)

type Orchestrator struct {
	journal journal.Repository
}

func NewOrchestrator(j journal.Repository) *Orchestrator {
	return &Orchestrator{journal: j}
}

// Run journals the payload and executes steps in order. On failure it stops,
// leaves applied steps in place and returns a *StepError.
func (o *Orchestrator) Run(ctx context.Context, sagaID, payload string, steps []Step) error {
	if err := o.save(ctx, journal.NewEntry(ctx, sagaID, journal.StatusStarted, "", 0, payload, nil)); err != nil {
		return err
	}
	return o.forward(ctx, sagaID, steps, 0)
}

// Resume continues a stopped saga from its high-water mark.
func (o *Orchestrator) Resume(ctx context.Context, sagaID string, build Builder) error {
	latest, steps, err := o.load(ctx, sagaID, build)
	if err != nil {
		return err
	}
	switch latest.Status {
	case journal.StatusCompleted:
		return ErrAlreadyCompleted
	case journal.StatusCompensated:
		return ErrAlreadyCompensated
	}
	log.Info().Str("saga_id", sagaID).Int("from", latest.HighWaterMark).Msg("resuming saga")
	return o.forward(ctx, sagaID, steps, latest.HighWaterMark)
}

// Compensate undoes applied steps in reverse, starting below the high-water
// mark. It stops at the first compensation that fails; calling it again
// continues from there.
func (o *Orchestrator) Compensate(ctx context.Context, sagaID string, build Builder) error {
	latest, steps, err := o.load(ctx, sagaID, build)
	if err != nil {
		return err
	}
	if latest.Status == journal.StatusCompensated {
		return ErrAlreadyCompensated
	}

	hwm := latest.HighWaterMark
	if err := o.save(ctx, journal.NewEntry(ctx, sagaID, journal.StatusCompensating, "", hwm, "", nil)); err != nil {
		return err
	}
	for i := hwm - 1; i >= 0; i-- {
		step := steps[i]
		log.Info().Str("saga_id", sagaID).Str("step", step.Name()).Msg("compensating step")
		if err := step.Compensate(ctx); err != nil {
			log.Error().Err(err).Str("saga_id", sagaID).Str("step", step.Name()).Msg("compensation failed")
			msg := fmt.Sprintf("compensate %s: %v", step.Name(), err)
			_ = o.save(ctx, journal.NewEntry(ctx, sagaID, journal.StatusFailed, step.Name(), i+1, "", []string{msg}))
			return &StepError{SagaID: sagaID, Step: step.Name(), Index: i + 1, Compensate: true, Err: err}
		}
		if err := o.save(ctx, journal.NewEntry(ctx, sagaID, journal.StatusCompensating, step.Name(), i, "", nil)); err != nil {
			return err
		}
	}
	return o.save(ctx, journal.NewEntry(ctx, sagaID, journal.StatusCompensated, "", 0, "", nil))
}

func (o *Orchestrator) forward(ctx context.Context, sagaID string, steps []Step, from int) error {
	for i := from; i < len(steps); i++ {
		step := steps[i]
		log.Debug().Str("saga_id", sagaID).Str("step", step.Name()).Msg("executing step")
		if err := step.Execute(ctx); err != nil {
			log.Error().Err(err).Str("saga_id", sagaID).Str("step", step.Name()).Int("high_water_mark", i).Msg("step failed, saga stopped")
			msg := fmt.Sprintf("%s: %v", step.Name(), err)
			_ = o.save(ctx, journal.NewEntry(ctx, sagaID, journal.StatusFailed, step.Name(), i, "", []string{msg}))
			return &StepError{SagaID: sagaID, Step: step.Name(), Index: i, Err: err}
		}
		if err := o.save(ctx, journal.NewEntry(ctx, sagaID, journal.StatusStepDone, step.Name(), i+1, "", nil)); err != nil {
			return &JournalError{SagaID: sagaID, Applied: i + 1, Err: err}
		}
	}
	log.Info().Str("saga_id", sagaID).Int("steps", len(steps)).Msg("saga completed")
	if err := o.save(ctx, journal.NewEntry(ctx, sagaID, journal.StatusCompleted, "", len(steps), "", nil)); err != nil {
		return &JournalError{SagaID: sagaID, Applied: len(steps), Err: err}
	}
	return nil
}

// load returns the latest entry and the steps rebuilt from the STARTED payload.
func (o *Orchestrator) load(ctx context.Context, sagaID string, build Builder) (*journal.Entry, []Step, error) {
	hist, err := o.journal.History(ctx, sagaID)
	if err != nil {
		return nil, nil, err
	}
	var payload string
	for _, e := range hist {
		if e.Status == journal.StatusStarted {
			payload = e.Payload
			break
		}
	}
	steps, err := build(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("saga %s: rebuild steps: %w", sagaID, err)
	}
	latest := hist[len(hist)-1]
	if latest.HighWaterMark > len(steps) {
		return nil, nil, fmt.Errorf("%w: mark %d, %d steps", ErrStepMismatch, latest.HighWaterMark, len(steps))
	}
	return &latest, steps, nil
}

func (o *Orchestrator) save(ctx context.Context, e *journal.Entry) error {
	if err := o.journal.Save(ctx, e); err != nil {
		return fmt.Errorf("saga %s: journal %s: %w", e.SagaID, e.Status, err)
	}
	return nil
}

// Payload returns the payload a saga was started with.
func (o *Orchestrator) Payload(ctx context.Context, sagaID string) (string, error) {
	hist, err := o.journal.History(ctx, sagaID)
	if err != nil {
		return "", err
	}
	for _, e := range hist {
		if e.Status == journal.StatusStarted {
			return e.Payload, nil
		}
	}
	return "", journal.ErrNotFound
}

// State is the latest journal entry of a saga.
func (o *Orchestrator) State(ctx context.Context, sagaID string) (*journal.Entry, error) {
	return o.journal.Latest(ctx, sagaID)
}
