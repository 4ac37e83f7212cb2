package callbacks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Headers set on every delivery.
const (
	HeaderDelivery  = "X-Orgwarden-Delivery"
	HeaderEvent     = "X-Orgwarden-Event"
	HeaderSignature = "X-Orgwarden-Signature-256"
	HeaderTimestamp = "X-Orgwarden-Timestamp"
)

// maxResponseBody bounds how much of a receiver response is read.
const maxResponseBody = 64 * 1024

// Envelope is the JSON body POSTed to the receiver.
type Envelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type preDeleteResponse struct {
	Allow bool `json:"allow"`
}

// HTTPReceiver delivers notifications as signed JSON POST requests to a
// single endpoint. The event type travels in the envelope and in the
// X-Orgwarden-Event header.
type HTTPReceiver struct {
	url    string
	secret []byte
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

var _ Receiver = (*HTTPReceiver)(nil)

// NewHTTPReceiver creates a receiver posting to url. A non-empty secret
// signs each body with HMAC-SHA256.
func NewHTTPReceiver(url, secret string, client *http.Client, logger zerolog.Logger) *HTTPReceiver {
	return &HTTPReceiver{
		url:    url,
		secret: []byte(secret),
		client: client,
		logger: logger.With().Str("component", "callbacks").Logger(),
		now:    time.Now,
	}
}

// Sign returns the signature header value of payload under secret.
func Sign(payload, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload under secret.
func Verify(payload, secret []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

// UserAccepted implements Receiver.
func (r *HTTPReceiver) UserAccepted(ctx context.Context, ev UserEvent) error {
	return r.send(ctx, EventUserAccepted, ev, nil)
}

// UserRemoved implements Receiver.
func (r *HTTPReceiver) UserRemoved(ctx context.Context, ev UserEvent) error {
	return r.send(ctx, EventUserRemoved, ev, nil)
}

// DeviceRemoved implements Receiver.
func (r *HTTPReceiver) DeviceRemoved(ctx context.Context, ev DeviceEvent) error {
	return r.send(ctx, EventDeviceRemoved, ev, nil)
}

// OrganizationRemoved implements Receiver.
func (r *HTTPReceiver) OrganizationRemoved(ctx context.Context, orgID int64) error {
	return r.send(ctx, EventOrganizationRemoved, OrganizationEvent{OrganizationID: orgID}, nil)
}

// OrganizationPreDeleteCheck implements Receiver. The receiver answers with
// {"allow": bool}; an empty body allows the deletion.
func (r *HTTPReceiver) OrganizationPreDeleteCheck(ctx context.Context, orgID int64) (bool, error) {
	resp := preDeleteResponse{Allow: true}
	if err := r.send(ctx, EventOrganizationPreDelete, OrganizationEvent{OrganizationID: orgID}, &resp); err != nil {
		return false, err
	}
	return resp.Allow, nil
}

func (r *HTTPReceiver) send(ctx context.Context, eventType string, data, out any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	now := r.now().UTC()
	env := Envelope{
		ID:        uuid.New().String(),
		EventType: eventType,
		Timestamp: now.Format(time.RFC3339),
		Data:      raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", eventType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Orgwarden-Callback/1.0")
	req.Header.Set(HeaderDelivery, env.ID)
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	if len(r.secret) > 0 {
		req.Header.Set(HeaderSignature, Sign(body, r.secret))
	}

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", eventType, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r.logger.Warn().
			Str("delivery_id", env.ID).
			Str("event", eventType).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("callback rejected")
		return fmt.Errorf("deliver %s: unexpected status code: %d", eventType, resp.StatusCode)
	}

	r.logger.Debug().
		Str("delivery_id", env.ID).
		Str("event", eventType).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("callback delivered")

	if out != nil && len(strings.TrimSpace(string(respBody))) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode %s response: %w", eventType, err)
		}
	}
	return nil
}
