package domain

import "time"

// Phase is the lifecycle position of the acquisition state machine.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAcquiring Phase = "acquiring"
	PhaseStopped   Phase = "stopped"
)

// StopReason records why the last acquisition cycle ended.
type StopReason string

const (
	StopUser     StopReason = "user"
	StopAccuracy StopReason = "accuracy"
	StopTimeout  StopReason = "timeout"
	StopError    StopReason = "error"
	StopStuck    StopReason = "stuck"
)

// AcquisitionState is the single source of truth for the location screen.
// Snapshots handed to consumers are deep copies and safe to retain.
type AcquisitionState struct {
	CycleID            string     `json:"cycle_id,omitempty"`
	Phase              Phase      `json:"phase"`
	BestReading        *Reading   `json:"best_reading,omitempty"`
	IsActive           bool       `json:"is_active"`
	LastLocationError  *ErrorKind `json:"last_location_error,omitempty"`
	IsResolvingAddress bool       `json:"is_resolving_address"`
	ResolvedAddress    *Address   `json:"resolved_address,omitempty"`
	LastResolveError   *ErrorKind `json:"last_resolve_error,omitempty"`
	ServiceEnabled     bool       `json:"service_enabled"`
	StopReason         StopReason `json:"stop_reason,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of the state.
func (s AcquisitionState) Clone() AcquisitionState {
	out := s
	if s.BestReading != nil {
		r := *s.BestReading
		out.BestReading = &r
	}
	if s.LastLocationError != nil {
		k := *s.LastLocationError
		out.LastLocationError = &k
	}
	if s.ResolvedAddress != nil {
		a := *s.ResolvedAddress
		out.ResolvedAddress = &a
	}
	if s.LastResolveError != nil {
		k := *s.LastResolveError
		out.LastResolveError = &k
	}
	return out
}
