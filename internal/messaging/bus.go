package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrBusUnavailable reports that the synchronous channel's responder did not
// answer within the request bound.
var ErrBusUnavailable = errors.New("message bus unavailable")

// DefaultRequestTimeout bounds synchronous requests so a non-responding
// authority surfaces as ErrBusUnavailable instead of stalling the caller
// forever.
const DefaultRequestTimeout = 10 * time.Second

// Bus is one role's connection to the message bus.
type Bus struct {
	conn *nats.Conn

	requestTimeout time.Duration
}

type BusOpt func(*Bus)

// WithRequestTimeout sets the bound on synchronous requests
func WithRequestTimeout(d time.Duration) BusOpt {
	return func(b *Bus) {
		b.requestTimeout = d
	}
}

// DialFunc defers connecting until a role worker starts, so a role that comes
// up before the bus fails fast and is relaunched by its supervisor.
type DialFunc func() (*Bus, error)

func Dial(url string, opts ...BusOpt) (*Bus, error) {
	b := &Bus{
		requestTimeout: DefaultRequestTimeout,
	}

	for _, opt := range opts {
		opt(b)
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to bus at %s: %w", url, err)
	}
	b.conn = conn

	return b, nil
}

func (b *Bus) Close() {
	b.conn.Close()
}

// Request issues one synchronous request and blocks until its reply arrives
// or the request bound elapses.
func (b *Bus) Request(ctx context.Context, req Envelope) (Envelope, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshalling %s request: %w", req.Kind, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	msg, err := b.conn.RequestWithContext(ctx, SubjectModelAPI, data)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) {
		return Envelope{}, fmt.Errorf("%s request: %w", req.Kind, ErrBusUnavailable)
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("%s request: %w", req.Kind, err)
	}

	var reply Envelope
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return Envelope{}, fmt.Errorf("unmarshalling %s reply: %w", req.Kind, err)
	}
	return reply, nil
}

// Publish sends an envelope to the given subject
func (b *Bus) Publish(subject string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshalling %s envelope: %w", env.Kind, err)
	}
	return b.conn.Publish(subject, data)
}

// Subscribe creates a subscription on the given subject. The handler is
// called for each envelope in publish order; a subscriber that connects after
// a message was published misses it.
// Returns an unsubscribe function to remove the subscription.
func (b *Bus) Subscribe(subject string, handler func(Envelope)) (func(), error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			slog.Warn("dropping malformed envelope", "subject", subject, "error", err)
			return
		}
		handler(env)
	})
	if err != nil {
		return nil, err
	}
	return func() { sub.Unsubscribe() }, nil
}

// HandleRequests answers the synchronous channel. Requests are dispatched one
// at a time in arrival order, and the handler must return a reply for every
// request it receives.
// Returns an unsubscribe function to remove the subscription.
func (b *Bus) HandleRequests(handler func(Envelope) Envelope) (func(), error) {
	sub, err := b.conn.Subscribe(SubjectModelAPI, func(msg *nats.Msg) {
		var req Envelope
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			req = Envelope{}
		}

		reply := handler(req)
		data, err := json.Marshal(reply)
		if err != nil {
			slog.Warn("marshalling reply", "kind", reply.Kind, "error", err)
			data, _ = json.Marshal(ErrorReply("INTERNAL", "reply serialization failed"))
		}
		if err := msg.Respond(data); err != nil {
			slog.Warn("sending reply", "kind", reply.Kind, "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return func() { sub.Unsubscribe() }, nil
}
