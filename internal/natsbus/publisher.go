// Package natsbus forwards photo store events to NATS subjects.
package natsbus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/starford/geocam/internal/models"
	"github.com/starford/geocam/internal/photostore"
)

const DefaultPrefix = "geocam"

// Conn is the part of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Message is the JSON body of a published event. Image bytes never travel
// on the bus.
type Message struct {
	Kind      string         `json:"kind"`
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	Liked     bool           `json:"liked"`
	FilePath  string         `json:"filePath"`
	Coords    *models.Coords `json:"coords,omitempty"`
	Address   string         `json:"address,omitempty"`
}

// Publisher implements photostore.Notifier.
type Publisher struct {
	conn   Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher wraps an established connection. An empty prefix selects
// DefaultPrefix.
func NewPublisher(conn Conn, prefix string, logger *slog.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, prefix: prefix, logger: logger}
}

// Connect dials url and returns the connection with a publisher bound to it.
func Connect(url, prefix string, logger *slog.Logger) (*nats.Conn, *Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("geocam"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("natsbus: connect %s: %w", url, err)
	}
	return nc, NewPublisher(nc, prefix, logger), nil
}

// Encode returns the subject and body for e.
func Encode(prefix string, e photostore.Event) (string, []byte, error) {
	p := e.Photo
	data, err := json.Marshal(Message{
		Kind:      string(e.Kind),
		ID:        p.ID,
		CreatedAt: p.CreatedAt,
		Liked:     p.Liked,
		FilePath:  p.FilePath,
		Coords:    p.Coords,
		Address:   p.Address,
	})
	if err != nil {
		return "", nil, err
	}
	return prefix + ".photo." + string(e.Kind), data, nil
}

// Notify publishes e. Failures are logged; the store never waits on the bus.
func (p *Publisher) Notify(e photostore.Event) {
	subject, data, err := Encode(p.prefix, e)
	if err != nil {
		p.logger.Error("natsbus: encode failed", slog.String("error", err.Error()))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("natsbus: publish failed",
			slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
