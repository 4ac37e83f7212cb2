package callbacks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	header http.Header
	body   []byte
	env    Envelope
}

func newReceiverServer(t *testing.T, status int, response string) (*httptest.Server, func() []delivery) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []delivery
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var env Envelope
		_ = json.Unmarshal(body, &env)
		mu.Lock()
		seen = append(seen, delivery{header: r.Header.Clone(), body: body, env: env})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []delivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]delivery(nil), seen...)
	}
}

func TestHTTPReceiver_SignsDeliveries(t *testing.T) {
	srv, seen := newReceiverServer(t, http.StatusNoContent, "")
	r := NewHTTPReceiver(srv.URL, "topsecret", &http.Client{Timeout: 5 * time.Second}, zerolog.Nop())

	require.NoError(t, r.UserAccepted(context.Background(), UserEvent{Login: "alice", OrganizationID: 7}))

	got := seen()
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, EventUserAccepted, d.header.Get(HeaderEvent))
	assert.Equal(t, d.env.ID, d.header.Get(HeaderDelivery))
	assert.NotEmpty(t, d.header.Get(HeaderTimestamp))
	assert.True(t, Verify(d.body, []byte("topsecret"), d.header.Get(HeaderSignature)))
	assert.False(t, Verify(d.body, []byte("other"), d.header.Get(HeaderSignature)))

	var ev UserEvent
	require.NoError(t, json.Unmarshal(d.env.Data, &ev))
	assert.Equal(t, UserEvent{Login: "alice", OrganizationID: 7}, ev)
}

func TestHTTPReceiver_UnsignedWithoutSecret(t *testing.T) {
	srv, seen := newReceiverServer(t, http.StatusOK, "")
	r := NewHTTPReceiver(srv.URL, "", &http.Client{Timeout: 5 * time.Second}, zerolog.Nop())

	require.NoError(t, r.OrganizationRemoved(context.Background(), 3))
	got := seen()
	require.Len(t, got, 1)
	assert.Empty(t, got[0].header.Get(HeaderSignature))
	assert.Equal(t, EventOrganizationRemoved, got[0].env.EventType)
}

func TestHTTPReceiver_RejectedDelivery(t *testing.T) {
	srv, _ := newReceiverServer(t, http.StatusInternalServerError, "boom")
	r := NewHTTPReceiver(srv.URL, "s", &http.Client{Timeout: 5 * time.Second}, zerolog.Nop())

	err := r.DeviceRemoved(context.Background(), DeviceEvent{DeviceID: "dev-1", OrganizationID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPReceiver_PreDeleteCheck(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     bool
	}{
		{"allow", `{"allow":true}`, true},
		{"deny", `{"allow":false}`, false},
		{"empty body allows", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := newReceiverServer(t, http.StatusOK, tt.response)
			r := NewHTTPReceiver(srv.URL, "s", &http.Client{Timeout: 5 * time.Second}, zerolog.Nop())

			allow, err := r.OrganizationPreDeleteCheck(context.Background(), 9)
			require.NoError(t, err)
			assert.Equal(t, tt.want, allow)
			assert.Equal(t, EventOrganizationPreDelete, seen()[0].env.EventType)
		})
	}
}

func TestHTTPReceiver_PreDeleteCheckFailureDenies(t *testing.T) {
	srv, _ := newReceiverServer(t, http.StatusBadGateway, "")
	r := NewHTTPReceiver(srv.URL, "s", &http.Client{Timeout: 5 * time.Second}, zerolog.Nop())

	allow, err := r.OrganizationPreDeleteCheck(context.Background(), 9)
	require.Error(t, err)
	assert.False(t, allow)
}
