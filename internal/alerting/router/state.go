package router

import (
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
)

// State is the alerting state of one fingerprint.
type State string

const (
	StateCold      State = "cold"
	StateAlerting  State = "alerting"
	StateDigesting State = "digesting"
)

// StateOf derives the state of a fingerprint from its stored state.
func StateOf(sev domain.Severity, st domain.FingerprintState, found bool, now time.Time) State {
	return domain.MatchSeverity(sev,
		func() State { return StateDigesting },
		func() State { return coolingState(st, found, now) },
		func() State { return coolingState(st, found, now) },
	)
}

func coolingState(st domain.FingerprintState, found bool, now time.Time) State {
	if found && now.Before(st.CooldownUntil) {
		return StateAlerting
	}
	return StateCold
}

// Action is what the router did with an occurrence.
type Action string

const (
	ActionPage     Action = "page"
	ActionChat     Action = "chat"
	ActionSuppress Action = "suppress"
	ActionDigest   Action = "digest"
)

// Decision records one routing outcome.
type Decision struct {
	Action     Action
	From       State
	To         State
	Suppressed int64
}
