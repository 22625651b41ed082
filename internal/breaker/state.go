// Package breaker implements the circuit-breaker status table and the
// Error-Rate and Consecutive-Error breaker strategies that evaluate it
// (§4.2-4.4). The package shape — a State enum, a table of atomically
// transitioned per-instance entries, and independent strategy types that
// hold no instance-scoped state of their own — is grounded on the
// teacher's internal/circuitbreaker package (breaker.go's State/Breaker
// interface, failure_rate.go's mutex-guarded transition logic), adapted
// from single-process-local breakers to one shared StatusTable that
// multiple strategies (and the health-check chain) observe and mutate
// without back-pointers, per §9's "cyclic collaborators" note.
package breaker

// State is a circuit breaker state (§3, §GLOSSARY).
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
