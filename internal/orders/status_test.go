package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTable(t *testing.T) {
	cases := []struct {
		status     Status
		normalized Status
		label      string
		class      string
		terminal   bool
		actions    []ActionKind
		final      string
	}{
		{StatusCreated, StatusCreated, "Creado", "status-created", false, []ActionKind{ActionMarkReceived}, ""},
		{StatusPending, StatusPending, "Pendiente", "status-pending", false, []ActionKind{ActionReview}, ""},
		{StatusReview, StatusReview, "En Revisión", "status-review", false, []ActionKind{ActionComplete, ActionMarkIncomplete}, ""},
		{StatusCompleted, StatusCompleted, "Completado", "status-completed", true, nil, "Procesada"},
		{StatusConfirmed, StatusCompleted, "Completado", "status-completed", true, nil, "Procesada"},
		{StatusIncomplete, StatusIncomplete, "Incompleto", "status-incomplete", true, nil, "Procesada"},
		{StatusCancelled, StatusCancelled, "Cancelada", "status-cancelled", true, nil, "Procesada"},
		{"BOGUS", "BOGUS", "Creado", "status-created", false, nil, "Creado"},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.normalized, tc.status.Normalize())
			assert.Equal(t, tc.label, tc.status.Label())
			assert.Equal(t, tc.class, tc.status.Class())
			assert.Equal(t, tc.terminal, tc.status.Terminal())

			next := NextActionFor(tc.status)
			var kinds []ActionKind
			for _, a := range next.Actions {
				kinds = append(kinds, a.Kind)
			}
			assert.Equal(t, tc.actions, kinds)
			assert.Equal(t, tc.final, next.Final)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusCreated, StatusPending))
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.True(t, CanTransition(StatusReview, StatusIncomplete))
	assert.False(t, CanTransition(StatusCreated, StatusCompleted))
	assert.False(t, CanTransition(StatusConfirmed, StatusIncomplete))
	assert.False(t, CanTransition("BOGUS", StatusPending))
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusCompleted, ParseStatus(" confirmed "))
	assert.Equal(t, StatusPending, ParseStatus("pending"))
	assert.Equal(t, Status("BOGUS"), ParseStatus("bogus"))
}

func TestNextActionAllows(t *testing.T) {
	a, ok := NextActionFor(StatusCreated).Allows(ActionMarkReceived)
	assert.True(t, ok)
	assert.Equal(t, StatusPending, a.Target)

	_, ok = NextActionFor("BOGUS").Allows(ActionMarkReceived)
	assert.False(t, ok)
}
