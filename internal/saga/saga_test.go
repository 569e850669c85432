package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/economato/go-order-desk/internal/journal"
)

type recorder struct {
	calls []string
}

type fakeStep struct {
	name    string
	rec     *recorder
	failOn  int // fail the nth Execute call, 1-based; 0 never
	execs   int
	undoErr error
}

var _ Step = (*fakeStep)(nil)

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Execute(context.Context) error {
	s.execs++
	if s.execs == s.failOn {
		return errors.New("backend down")
	}
	s.rec.calls = append(s.rec.calls, "do:"+s.name)
	return nil
}

func (s *fakeStep) Compensate(context.Context) error {
	if s.undoErr != nil {
		return s.undoErr
	}
	s.rec.calls = append(s.rec.calls, "undo:"+s.name)
	return nil
}

func steps(rec *recorder, names ...string) []*fakeStep {
	out := make([]*fakeStep, 0, len(names))
	for _, n := range names {
		out = append(out, &fakeStep{name: n, rec: rec})
	}
	return out
}

func asSteps(fs []*fakeStep) []Step {
	out := make([]Step, 0, len(fs))
	for _, f := range fs {
		out = append(out, f)
	}
	return out
}

func builder(fs []*fakeStep) Builder {
	return func(string) ([]Step, error) { return asSteps(fs), nil }
}

func TestRunCompletes(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	rec := &recorder{}
	fs := steps(rec, "a", "b", "c")

	require.NoError(t, NewOrchestrator(j).Run(ctx, "s1", `{"x":1}`, asSteps(fs)))
	assert.Equal(t, []string{"do:a", "do:b", "do:c"}, rec.calls)

	last, err := j.Latest(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, journal.StatusCompleted, last.Status)
	assert.Equal(t, 3, last.HighWaterMark)
}

func TestFailureStopsWithoutCompensating(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	rec := &recorder{}
	fs := steps(rec, "a", "b", "c")
	fs[1].failOn = 1
	o := NewOrchestrator(j)

	err := o.Run(ctx, "s1", "{}", asSteps(fs))
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b", se.Step)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, []string{"do:a"}, rec.calls, "applied steps stay applied")

	last, err := o.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, journal.StatusFailed, last.Status)
	assert.Equal(t, 1, last.HighWaterMark)
	require.Len(t, last.Errors, 1)

	payload, err := o.Payload(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "{}", payload)
}

type lossyJournal struct {
	*journal.Memory
	fail journal.Status
}

func (j lossyJournal) Save(ctx context.Context, e *journal.Entry) error {
	if e.Status == j.fail {
		return errors.New("disk full")
	}
	return j.Memory.Save(ctx, e)
}

func TestJournalWriteFailureCountsAppliedSteps(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	fs := steps(rec, "a", "b")

	err := NewOrchestrator(lossyJournal{Memory: journal.NewMemory(), fail: journal.StatusCompleted}).Run(ctx, "s1", "{}", asSteps(fs))
	var je *JournalError
	require.ErrorAs(t, err, &je)
	assert.Equal(t, 2, je.Applied)
	assert.Equal(t, []string{"do:a", "do:b"}, rec.calls)

	rec.calls = nil
	err = NewOrchestrator(lossyJournal{Memory: journal.NewMemory(), fail: journal.StatusStepDone}).Run(ctx, "s2", "{}", asSteps(steps(rec, "a", "b")))
	require.ErrorAs(t, err, &je)
	assert.Equal(t, 1, je.Applied)
	assert.Equal(t, []string{"do:a"}, rec.calls)
}

func TestResumeContinuesFromHighWaterMark(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	rec := &recorder{}
	fs := steps(rec, "a", "b", "c")
	fs[1].failOn = 1
	o := NewOrchestrator(j)

	require.Error(t, o.Run(ctx, "s1", "{}", asSteps(fs)))
	require.NoError(t, o.Resume(ctx, "s1", builder(fs)))

	assert.Equal(t, []string{"do:a", "do:b", "do:c"}, rec.calls, "a is not executed twice")
	assert.ErrorIs(t, o.Resume(ctx, "s1", builder(fs)), ErrAlreadyCompleted)
}

func TestCompensateWalksBackwards(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	rec := &recorder{}
	fs := steps(rec, "a", "b", "c")
	fs[2].failOn = 1
	o := NewOrchestrator(j)

	require.Error(t, o.Run(ctx, "s1", "{}", asSteps(fs)))
	require.NoError(t, o.Compensate(ctx, "s1", builder(fs)))

	assert.Equal(t, []string{"do:a", "do:b", "undo:b", "undo:a"}, rec.calls)
	last, err := o.State(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, journal.StatusCompensated, last.Status)
	assert.Equal(t, 0, last.HighWaterMark)

	assert.ErrorIs(t, o.Compensate(ctx, "s1", builder(fs)), ErrAlreadyCompensated)
	assert.ErrorIs(t, o.Resume(ctx, "s1", builder(fs)), ErrAlreadyCompensated)
}

func TestCompensateStopsAndCanBeRetried(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	rec := &recorder{}
	fs := steps(rec, "a", "b", "c")
	o := NewOrchestrator(j)
	require.NoError(t, o.Run(ctx, "s1", "{}", asSteps(fs)))

	fs[1].undoErr = errors.New("conflict")
	err := o.Compensate(ctx, "s1", builder(fs))
	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Compensate)
	assert.Equal(t, 2, se.Index)

	fs[1].undoErr = nil
	require.NoError(t, o.Compensate(ctx, "s1", builder(fs)))
	assert.Equal(t, []string{"do:a", "do:b", "do:c", "undo:c", "undo:b", "undo:a"}, rec.calls, "c is undone once")
}

func TestResumeRejectsShorterRebuild(t *testing.T) {
	ctx := context.Background()
	j := journal.NewMemory()
	rec := &recorder{}
	fs := steps(rec, "a", "b")
	fs[1].failOn = 1
	o := NewOrchestrator(j)
	require.Error(t, o.Run(ctx, "s1", "{}", asSteps(fs)))

	err := o.Resume(ctx, "s1", func(string) ([]Step, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrStepMismatch)

	assert.ErrorIs(t, o.Resume(ctx, "nope", builder(fs)), journal.ErrNotFound)
}
