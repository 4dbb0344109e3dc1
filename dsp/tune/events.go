package tune

// EventKind discriminates telemetry events.
type EventKind int

const (
	// EventPitch reports one block's detection and correction outcome.
	EventPitch EventKind = iota
	// EventSettings reports the merged settings after an update.
	EventSettings
	// EventEnabled reports an enable/disable transition.
	EventEnabled
	// EventError reports a recovered per-block processing fault.
	EventError
)

// PitchEvent is the per-block correction telemetry. DetectedHz is 0 for
// unvoiced blocks; CorrectionCents is the applied (post clamp and speed
// scaling) amount.
type PitchEvent struct {
	DetectedHz      float64
	TargetHz        float64
	CorrectionCents float64
	Confidence      float64
}

// Event is a telemetry message delivered synchronously to the engine's
// sink. Only the field matching Kind is meaningful.
type Event struct {
	Kind     EventKind
	Pitch    PitchEvent
	Settings Settings
	Enabled  bool
	Err      error
}

// Sink consumes telemetry events. Emit is called synchronously from the
// audio path and must not block.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }
