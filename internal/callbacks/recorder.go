package callbacks

import (
	"context"
	"sync"
)

// Call is one notification captured by a Recorder.
type Call struct {
	Event          string
	Login          string
	DeviceID       string
	OrganizationID int64
}

// Recorder is an in-process Receiver for standalone mode and tests. It keeps
// every notification and allows every deletion unless told otherwise.
type Recorder struct {
	mu    sync.Mutex
	calls []Call

	// Veto makes OrganizationPreDeleteCheck deny the listed organizations.
	Veto map[int64]bool

	// Err, when set, is returned by every call after it is recorded.
	Err error
}

var _ Receiver = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Veto: make(map[int64]bool)}
}

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.Err
}

// Calls returns a copy of the recorded notifications in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Events returns the recorded event types in order.
func (r *Recorder) Events() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Event
	}
	return out
}

// UserAccepted implements Receiver.
func (r *Recorder) UserAccepted(ctx context.Context, ev UserEvent) error {
	return r.record(Call{Event: EventUserAccepted, Login: ev.Login, OrganizationID: ev.OrganizationID})
}

// UserRemoved implements Receiver.
func (r *Recorder) UserRemoved(ctx context.Context, ev UserEvent) error {
	return r.record(Call{Event: EventUserRemoved, Login: ev.Login, OrganizationID: ev.OrganizationID})
}

// DeviceRemoved implements Receiver.
func (r *Recorder) DeviceRemoved(ctx context.Context, ev DeviceEvent) error {
	return r.record(Call{Event: EventDeviceRemoved, DeviceID: ev.DeviceID, OrganizationID: ev.OrganizationID})
}

// OrganizationRemoved implements Receiver.
func (r *Recorder) OrganizationRemoved(ctx context.Context, orgID int64) error {
	return r.record(Call{Event: EventOrganizationRemoved, OrganizationID: orgID})
}

// OrganizationPreDeleteCheck implements Receiver.
func (r *Recorder) OrganizationPreDeleteCheck(ctx context.Context, orgID int64) (bool, error) {
	if err := r.record(Call{Event: EventOrganizationPreDelete, OrganizationID: orgID}); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.Veto[orgID], nil
}
