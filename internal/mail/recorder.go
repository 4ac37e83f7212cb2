package mail

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Sent is a message accepted by a Recorder.
type Sent struct {
	Message
	Rendered *Rendered
}

// Recorder renders messages and keeps them instead of delivering. It is the
// dispatcher of standalone mode, where it also logs each message.
type Recorder struct {
	renderer *Renderer
	logger   zerolog.Logger

	mu   sync.Mutex
	sent []Sent

	// Err, when set, fails every Send.
	Err error
}

var _ Dispatcher = (*Recorder)(nil)

// NewRecorder creates a Recorder.
func NewRecorder(renderer *Renderer, logger zerolog.Logger) *Recorder {
	return &Recorder{renderer: renderer, logger: logger.With().Str("component", "mail").Logger()}
}

// Send implements Dispatcher.
func (r *Recorder) Send(ctx context.Context, msg Message) error {
	if r.Err != nil {
		return r.Err
	}
	rendered, err := r.renderer.Render(msg)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sent = append(r.sent, Sent{Message: msg, Rendered: rendered})
	r.mu.Unlock()

	r.logger.Info().
		Str("to", msg.To).
		Str("template", msg.TemplateKey).
		Str("subject", rendered.Subject).
		Msg("mail recorded, not delivered")
	return nil
}

// Sent returns the recorded messages in order.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
