package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/sneak-radar/internal/metrics"
)

// Invalidator drops cached responses that depend on a cinema's hints.
type Invalidator interface {
	InvalidateCinema(ctx context.Context, cinemaID uint64) (int, error)
}

// Consumer reads hint events from the hint queue.  For every event it
// invalidates the cached guesses and hint lists of the affected cinema
// and appends one line to Journal.
type Consumer struct {
	URL     string
	Queue   string
	Cache   Invalidator // optional
	Journal io.Writer   // optional
	Log     *logrus.Logger
}

// NewConsumer builds a Consumer for the hint queue.
func NewConsumer(url string, cache Invalidator, journal io.Writer, log *logrus.Logger) *Consumer {
	return &Consumer{URL: url, Queue: HintQueueName, Cache: cache, Journal: journal, Log: log}
}

// Run connects to the broker and consumes until ctx is done, reconnecting
// with exponential backoff (1s up to 30s).  It returns ctx.Err().
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.WithError(err).WithField("retry_in", backoff.String()).Warn("hint consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.WithError(err).Warn("hint consumer: loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("hint consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(ctx, d.Body); err != nil {
				c.Log.WithError(err).Warn("hint consumer: message rejected")
				// No requeue: a poison message would loop forever.
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle processes one message body.  Malformed bodies are an error; a
// failing cache is logged and does not reject the message since cached
// entries expire on their own.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev HintEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		metrics.EventsConsumed.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type != EventHintRecorded && ev.Type != EventHintVoted {
		metrics.EventsConsumed.WithLabelValues("unknown", "malformed").Inc()
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.CinemaID == 0 {
		metrics.EventsConsumed.WithLabelValues(ev.Type, "malformed").Inc()
		return errors.New("event without cinema id")
	}

	fields := logrus.Fields{"type": ev.Type, "hint_id": ev.HintID, "cinema_id": ev.CinemaID}
	if c.Cache != nil {
		n, err := c.Cache.InvalidateCinema(ctx, ev.CinemaID)
		if err != nil {
			c.Log.WithError(err).WithFields(fields).Warn("hint consumer: cache invalidation failed")
		} else {
			metrics.CacheInvalidations.Add(float64(n))
			fields["invalidated"] = n
		}
	}
	if c.Journal != nil {
		if _, err := io.WriteString(c.Journal, journalLine(ev)); err != nil {
			metrics.EventsConsumed.WithLabelValues(ev.Type, "error").Inc()
			return fmt.Errorf("write journal: %w", err)
		}
	}
	metrics.EventsConsumed.WithLabelValues(ev.Type, "ok").Inc()
	c.Log.WithFields(fields).Debug("hint event handled")
	return nil
}

func journalLine(ev HintEvent) string {
	switch ev.Type {
	case EventHintVoted:
		return fmt.Sprintf("[%s] Hint voted | hint_id=%d | cinema_id=%d | movie_id=%d | score=%d\n",
			ev.OccurredAt, ev.HintID, ev.CinemaID, ev.MovieID, ev.Score)
	default:
		return fmt.Sprintf("[%s] Hint recorded | hint_id=%d | cinema_id=%d | movie_id=%d | report_date=%s | guess_rank=%s\n",
			ev.OccurredAt, ev.HintID, ev.CinemaID, ev.MovieID, ev.ReportDate, ev.GuessRank)
	}
}

// sleep waits for d or until ctx is done and reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
