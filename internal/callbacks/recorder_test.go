package callbacks

import (
	"context"
	"errors"
	"testing"

	"github.com/MacJediWizard/orgwarden/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := NewRecorder()
	r.Veto[2] = true

	require.NoError(t, r.UserAccepted(ctx, UserEvent{Login: "alice", OrganizationID: 1}))
	require.NoError(t, r.DeviceRemoved(ctx, DeviceEvent{DeviceID: "dev", OrganizationID: 1}))

	allow, err := r.OrganizationPreDeleteCheck(ctx, 1)
	require.NoError(t, err)
	assert.True(t, allow)

	allow, err = r.OrganizationPreDeleteCheck(ctx, 2)
	require.NoError(t, err)
	assert.False(t, allow)

	assert.Equal(t, []string{
		EventUserAccepted,
		EventDeviceRemoved,
		EventOrganizationPreDelete,
		EventOrganizationPreDelete,
	}, r.Events())
	assert.Equal(t, "dev", r.Calls()[1].DeviceID)
}

func TestRecorder_Err(t *testing.T) {
	r := NewRecorder()
	r.Err = errors.New("receiver down")

	allow, err := r.OrganizationPreDeleteCheck(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, allow)
	assert.Len(t, r.Calls(), 1)
}

func TestInstrumented(t *testing.T) {
	reg := prometheus.NewRegistry()
	met, err := metrics.NewPrometheusMetrics(reg)
	require.NoError(t, err)

	rec := NewRecorder()
	r := NewInstrumented(rec, met)
	require.NoError(t, r.UserRemoved(context.Background(), UserEvent{Login: "bob", OrganizationID: 4}))

	var m dto.Metric
	require.NoError(t, met.ExternalCalls.WithLabelValues("callbacks", "user_removed", metrics.OutcomeSuccess).Write(&m))
	assert.Equal(t, float64(1), m.GetCounter().GetValue())
	assert.Equal(t, []string{EventUserRemoved}, rec.Events())
}
