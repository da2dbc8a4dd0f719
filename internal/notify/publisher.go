// Package notify announces saved syllable audio on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/hangul-tts/internal/core"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NatsPublisher implements core.Notifier by publishing AudioChunkCreatedEvent messages.
type NatsPublisher struct {
	natsConnection *nats.Conn
	subject        string
	now            func() time.Time
}

// NewNatsPublisher creates a publisher for the given subject.
func NewNatsPublisher(natsConnection *nats.Conn, subject string) *NatsPublisher {
	return &NatsPublisher{
		natsConnection: natsConnection,
		subject:        subject,
		now:            time.Now,
	}
}

// AudioSaved publishes one event per saved file. The batch ID is carried as the
// workflow ID and the audio key is the public path of the file.
func (p *NatsPublisher) AudioSaved(_ context.Context, batchID string, file core.SavedFile, index, total int) error {
	event := &events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  p.now().UTC(),
			WorkflowID: batchID,
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		AudioKey:   file.PublicPath,
		PageNumber: index,
		TotalPages: total,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audio event: %w", err)
	}

	err = p.natsConnection.Publish(p.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish audio event on %s: %w", p.subject, err)
	}

	return nil
}
