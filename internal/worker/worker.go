// Package worker provides a NATS worker that runs syllable batches on request.
//
// It is an alternative trigger to the HTTP endpoint: a request carrying
// {startIndex, batchSize} is answered with the same batch result JSON.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/book-expert/hangul-tts/internal/batch"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

// ErrNoReplySubject indicates a batch request published without a reply inbox.
var ErrNoReplySubject = errors.New("batch request has no reply subject")

// BatchRunner executes one batch window.
type BatchRunner interface {
	Run(ctx context.Context, req batch.Request) (*batch.Result, error)
}

type errorReply struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// NatsWorker listens for batch requests on a NATS subject and processes them one at a time.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	runner         BatchRunner
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	runner BatchRunner,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		runner:         runner,
		log:            log,
	}
}

// Run subscribes and blocks until ctx is canceled, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, func(msg *nats.Msg) {
		w.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for batch requests on subject: %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(ctx context.Context, msg *nats.Msg) {
	if msg.Reply == "" {
		w.log.Error("Dropping batch request on %s: %v", msg.Subject, ErrNoReplySubject)

		return
	}

	// A panic in the callback goroutine would take the whole process down.
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		w.log.Error("Batch request panicked: %v\n%s", recovered, debug.Stack())
		w.respond(msg, errorReply{Error: "Internal server error", Details: fmt.Sprint(recovered)})
	}()

	req, err := parseRequest(msg.Data)
	if err != nil {
		w.log.Error("Failed to parse batch request: %v", err)
		w.respond(msg, errorReply{Error: "Invalid request", Details: err.Error()})

		return
	}

	result, err := w.runner.Run(ctx, req)
	if err != nil {
		w.log.Error("Batch at %d failed: %v", req.StartIndex, err)
		w.respond(msg, errorReply{Error: "Internal server error", Details: err.Error()})

		return
	}

	w.respond(msg, result)
}

func (w *NatsWorker) respond(msg *nats.Msg, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		w.log.Error("Failed to marshal batch reply: %v", err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		w.log.Error("Failed to publish batch reply: %v", err)
	}
}

func parseRequest(data []byte) (batch.Request, error) {
	var req batch.Request

	err := json.Unmarshal(data, &req)
	if err != nil {
		return batch.Request{}, fmt.Errorf("failed to unmarshal batch request: %w", err)
	}

	return req, nil
}
