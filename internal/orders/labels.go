package orders

// Label is the Spanish display text for a status. Anything unrecognised
// renders as "Creado".
func (s Status) Label() string {
	switch s.Normalize() {
	case StatusCompleted:
		return "Completado"
	case StatusIncomplete:
		return "Incompleto"
	case StatusReview:
		return "En Revisión"
	case StatusPending:
		return "Pendiente"
	case StatusCancelled:
		return "Cancelada"
	default:
		return "Creado"
	}
}

var statusClass = map[Status]string{
	StatusCreated:    "status-created",
	StatusPending:    "status-pending",
	StatusReview:     "status-review",
	StatusCompleted:  "status-completed",
	StatusIncomplete: "status-incomplete",
	StatusCancelled:  "status-cancelled",
}

func (s Status) Class() string {
	if c, ok := statusClass[s.Normalize()]; ok {
		return c
	}
	return "status-created"
}

type ActionKind string

const (
	ActionMarkReceived   ActionKind = "mark_received"
	ActionReview         ActionKind = "review"
	ActionComplete       ActionKind = "complete"
	ActionMarkIncomplete ActionKind = "mark_incomplete"
)

// Action is one button offered for an order. Target is empty for actions
// that open a workflow instead of setting a status directly.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Label  string     `json:"label"`
	Target Status     `json:"target,omitempty"`
}

// NextAction lists what can be done with an order in its current status.
// Terminal orders get no actions; Final carries the label shown instead.
type NextAction struct {
	Actions []Action `json:"actions,omitempty"`
	Final   string   `json:"final,omitempty"`
}

func NextActionFor(s Status) NextAction {
	switch s.Normalize() {
	case StatusCreated:
		return NextAction{Actions: []Action{
			{Kind: ActionMarkReceived, Label: "Marcar como Recibido", Target: StatusPending},
		}}
	case StatusPending:
		return NextAction{Actions: []Action{
			{Kind: ActionReview, Label: "Revisar Orden"},
		}}
	case StatusReview:
		return NextAction{Actions: []Action{
			{Kind: ActionComplete, Label: "Completar", Target: StatusCompleted},
			{Kind: ActionMarkIncomplete, Label: "Incompleto", Target: StatusIncomplete},
		}}
	case StatusCompleted, StatusIncomplete, StatusCancelled:
		return NextAction{Final: "Procesada"}
	default:
		return NextAction{Final: s.Label()}
	}
}

// Allows reports whether kind is one of the actions offered for s.
func (n NextAction) Allows(kind ActionKind) (Action, bool) {
	for _, a := range n.Actions {
		if a.Kind == kind {
			return a, true
		}
	}
	return Action{}, false
}
