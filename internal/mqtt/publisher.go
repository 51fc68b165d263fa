package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/events"
)

// EventPayload is the JSON document published for every event lifecycle change.
// Field names are part of the published topic contract.
type EventPayload struct {
	Kind        string    `json:"kind"`
	Identity    string    `json:"identity"`
	Session     string    `json:"session"`
	Source      string    `json:"source"`
	StartRow    int64     `json:"start_row"`
	EndRow      int64     `json:"end_row"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	FreqLo      float64   `json:"freq_lo_hz"`
	FreqHi      float64   `json:"freq_hi_hz"`
	Description string    `json:"description"`
	Final       bool      `json:"final"`
}

// BinMapper converts bins to baseband frequency
type BinMapper func(bin int) float64

// Publisher is an events.Consumer that publishes lifecycle changes under
// <topic>/<kind>
type Publisher struct {
	client  Client
	topic   string
	session string
	clock   events.RowClock
	bin2hz  BinMapper
	timeout time.Duration
}

// NewPublisher creates a publisher for one session
func NewPublisher(c Client, topic, session string, clock events.RowClock, bin2hz BinMapper) *Publisher {
	return &Publisher{
		client:  c,
		topic:   topic,
		session: session,
		clock:   clock,
		bin2hz:  bin2hz,
		timeout: DefaultConfig().PublishTimeout,
	}
}

// Name implements events.Consumer
func (p *Publisher) Name() string { return "mqtt" }

// Payload builds the message for n
func (p *Publisher) Payload(n events.Notification) EventPayload {
	start, end := p.clock.Span(n.Event)
	return EventPayload{
		Kind:        string(n.Kind),
		Identity:    n.Event.Identity,
		Session:     p.session,
		Source:      n.Event.Source,
		StartRow:    n.Event.StartRow,
		EndRow:      n.Event.EndRow,
		Start:       start.UTC(),
		End:         end.UTC(),
		FreqLo:      p.bin2hz(n.Event.BinLo),
		FreqHi:      p.bin2hz(n.Event.BinHi),
		Description: n.Event.Description,
		Final:       n.Event.Final,
	}
}

// Process implements events.Consumer
func (p *Publisher) Process(n events.Notification) error {
	// pruning is local bookkeeping, subscribers only see the occurrence itself
	if n.Kind == events.Pruned {
		return nil
	}
	if !p.client.IsConnected() {
		return nil
	}

	data, err := json.Marshal(p.Payload(n))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("operation", "marshal_event").
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.client.Publish(ctx, p.topic+"/"+string(n.Kind), data)
}
