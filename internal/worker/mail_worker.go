package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/sportshop/api/internal/mail"
	"github.com/sportshop/api/internal/model"
)

const (
	maxSendAttempts = 3
	idempotencyTTL  = 24 * time.Hour
	attemptsHeader  = "x-attempts"
)

// MailWorker consumes queued notification emails and delivers them over
// SMTP. Sends are retried with a backoff by republishing; a message that
// exhausts its attempts dead-letters.
type MailWorker struct {
	channel     *amqp.Channel
	sender      mail.Sender
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewMailWorker(ch *amqp.Channel, sender mail.Sender, redisClient *redis.Client, log *slog.Logger) *MailWorker {
	return &MailWorker{
		channel:     ch,
		sender:      sender,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (w *MailWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(emailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("mail worker started")
	return nil
}

func (w *MailWorker) Stop() { close(w.done) }

func (w *MailWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var emailMsg model.EmailMessage
	if err := json.Unmarshal(msg.Body, &emailMsg); err != nil {
		w.log.Error("unmarshal email message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("message_id", emailMsg.ID, "template", emailMsg.Template)

	idempotencyKey := "email_sent:" + emailMsg.ID.String()
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("email already sent, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.sender.Send(emailMsg); err != nil {
		w.retry(ctx, msg, log, err)
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("email sent")
}

// retry republishes the message with an incremented attempt counter and
// a short delay. Once the counter reaches the limit the message is
// nacked without requeue, which dead-letters it.
func (w *MailWorker) retry(ctx context.Context, msg amqp.Delivery, log *slog.Logger, cause error) {
	attempts := attemptCount(msg) + 1
	if attempts >= maxSendAttempts {
		log.Error("send failed, giving up", "attempts", attempts, "error", cause)
		_ = msg.Nack(false, false)
		return
	}

	log.Warn("send failed, will retry", "attempt", attempts, "error", cause)
	time.Sleep(time.Duration(attempts) * time.Second)

	err := w.channel.PublishWithContext(ctx, "", emailQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg.Body,
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{attemptsHeader: int32(attempts)},
	})
	if err != nil {
		log.Error("republish failed", "error", err)
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

func attemptCount(msg amqp.Delivery) int {
	if msg.Headers == nil {
		return 0
	}
	switch v := msg.Headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}
