package robot

import "time"

// Event is a status update emitted by a control loop.
type Event struct {
	Time   time.Time `json:"time"`
	Source string    `json:"source"` // scan, tracker, follower, pan
	Kind   string    `json:"kind"`   // started, stopped, sample, state, summary, error

	Message string `json:"message,omitempty"`

	Angle    *int     `json:"angle,omitempty"`
	Distance *Reading `json:"distance,omitempty"`
	Mode     string   `json:"mode,omitempty"`
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

// Notify calls f(e).
func (f ObserverFunc) Notify(e Event) {
	f(e)
}

// Observers fans an event out to several observers.
type Observers []Observer

// Notify forwards e to each non-nil observer.
func (o Observers) Notify(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Notify(e)
		}
	}
}

// Emit stamps e and sends it to obs if obs is non-nil.
func Emit(obs Observer, e Event) {
	if obs == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	obs.Notify(e)
}

// IntPtr returns &v, for optional event fields.
func IntPtr(v int) *int {
	return &v
}

// ReadingPtr returns &r, for optional event fields.
func ReadingPtr(r Reading) *Reading {
	return &r
}
