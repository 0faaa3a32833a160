package lumix

import "time"

// Outcome classifies a finished cam.cgi request.
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeFailed         Outcome = "failed"
	OutcomeTransportError Outcome = "transport_error"
	// OutcomeUnchecked is used for queries whose body is handed back raw.
	OutcomeUnchecked Outcome = "unchecked"
)

// Observer receives a callback for every request and focus step. It is
// called synchronously, so implementations must be cheap.
type Observer interface {
	ObserveCommand(mode string, outcome Outcome, elapsed time.Duration)
	ObserveFocus(dir Direction, speed Speed, position int)
}

type nopObserver struct{}

func (nopObserver) ObserveCommand(string, Outcome, time.Duration) {}
func (nopObserver) ObserveFocus(Direction, Speed, int)            {}
