package callbacks

import (
	"context"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/metrics"
)

const system = "callbacks"

// Instrumented records call counts and latency of the wrapped Receiver.
type Instrumented struct {
	next    Receiver
	metrics *metrics.Metrics
}

var _ Receiver = (*Instrumented)(nil)

// NewInstrumented wraps next.
func NewInstrumented(next Receiver, m *metrics.Metrics) *Instrumented {
	return &Instrumented{next: next, metrics: m}
}

// UserAccepted implements Receiver.
func (r *Instrumented) UserAccepted(ctx context.Context, ev UserEvent) (err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "user_accepted", start, err) }(time.Now())
	return r.next.UserAccepted(ctx, ev)
}

// UserRemoved implements Receiver.
func (r *Instrumented) UserRemoved(ctx context.Context, ev UserEvent) (err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "user_removed", start, err) }(time.Now())
	return r.next.UserRemoved(ctx, ev)
}

// DeviceRemoved implements Receiver.
func (r *Instrumented) DeviceRemoved(ctx context.Context, ev DeviceEvent) (err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "device_removed", start, err) }(time.Now())
	return r.next.DeviceRemoved(ctx, ev)
}

// OrganizationRemoved implements Receiver.
func (r *Instrumented) OrganizationRemoved(ctx context.Context, orgID int64) (err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "organization_removed", start, err) }(time.Now())
	return r.next.OrganizationRemoved(ctx, orgID)
}

// OrganizationPreDeleteCheck implements Receiver.
func (r *Instrumented) OrganizationPreDeleteCheck(ctx context.Context, orgID int64) (_ bool, err error) {
	defer func(start time.Time) { r.metrics.ObserveExternalCall(system, "organization_pre_delete", start, err) }(time.Now())
	return r.next.OrganizationPreDeleteCheck(ctx, orgID)
}
