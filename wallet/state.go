package wallet

import "fmt"

// State is the Manager's lifecycle position.
//
//	Unprovisioned -> Provisioning -> Ready
//	                      \-> Failed (terminal)
type State int

const (
	StateUnprovisioned State = iota
	StateProvisioning
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnprovisioned:
		return "Unprovisioned"
	case StateProvisioning:
		return "Provisioning"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Outcome tells a caller how Provision succeeded.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeExisting
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeExisting:
		return "existing"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}
