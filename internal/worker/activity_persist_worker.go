package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"docchat/internal/model"
	"docchat/internal/platform/rabbitmq"
)

// ActivitySink stores one decoded activity record.
type ActivitySink interface {
	Create(ctx context.Context, activity *model.Activity) error
}

// ActivityPersistWorker drains the activity queue into the database.
type ActivityPersistWorker struct {
	conn      *amqp.Connection
	sink      ActivitySink
	queueName string
	log       zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewActivityPersistWorker(conn *amqp.Connection, sink ActivitySink, queueName string, log zerolog.Logger) *ActivityPersistWorker {
	return &ActivityPersistWorker{
		conn:      conn,
		sink:      sink,
		queueName: queueName,
		log:       log,
	}
}

func (w *ActivityPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if _, err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(32, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn().Str("queue", w.queueName).Msg("delivery channel closed")
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					w.log.Error().Err(err).Str("queue", w.queueName).Msg("persist activity failed")
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	w.log.Info().Str("queue", w.queueName).Msg("activity worker started")
	return nil
}

func (w *ActivityPersistWorker) handle(ctx context.Context, body []byte) error {
	activity, err := decodeActivity(body)
	if err != nil {
		return err
	}
	return w.sink.Create(ctx, activity)
}

func (w *ActivityPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func decodeActivity(body []byte) (*model.Activity, error) {
	var activity model.Activity
	if err := json.Unmarshal(body, &activity); err != nil {
		return nil, fmt.Errorf("decode activity failed: %w", err)
	}
	if activity.Workspace == "" || activity.Kind == "" {
		return nil, fmt.Errorf("decode activity failed: missing workspace or kind")
	}
	// Ids are assigned by the database.
	activity.ID = 0
	return &activity, nil
}
