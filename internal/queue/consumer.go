package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer drains the booking queues into an append-only audit file.
type Consumer struct {
	url     string
	logPath string
	log     *zap.Logger

	mu sync.Mutex
}

// NewConsumer returns a consumer that appends one line per event to
// logPath.
func NewConsumer(url, logPath string, log *zap.Logger) *Consumer {
	return &Consumer{url: url, logPath: logPath, log: log}
}

// Run connects to the broker and consumes both booking queues until ctx is
// canceled, reconnecting with capped exponential backoff.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("booking consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return
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
			return
		}
		c.log.Warn("booking consumer loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return
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
		c.log.Warn("booking consumer set qos failed", zap.Error(err))
	}

	confirmed, err := c.subscribe(ch, BookingConfirmedQueue)
	if err != nil {
		return err
	}
	canceled, err := c.subscribe(ch, BookingCanceledQueue)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-confirmed:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.ack(d, c.HandleConfirmed(d.Body))
		case d, ok := <-canceled:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.ack(d, c.HandleCanceled(d.Body))
		}
	}
}

func (c *Consumer) subscribe(ch *amqp.Channel, queueName string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queueName, err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", queueName, err)
	}
	return msgs, nil
}

func (c *Consumer) ack(d amqp.Delivery, err error) {
	if err != nil {
		c.log.Error("booking consumer handle message failed", zap.String("queue", d.RoutingKey), zap.Error(err))
		// no requeue, a poison message would spin forever
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// HandleConfirmed appends a booking.confirmed event to the audit file.
func (c *Consumer) HandleConfirmed(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return c.appendLine(fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | customer_id=%d | facility_id=%d | slot_id=%d | date=%s | time=%q | total=%s | type=%s | transaction_uuid=%s | ref_id=%s\n",
		ev.ConfirmedAt, ev.BookingID, ev.CustomerID, ev.FacilityID, ev.SlotID, ev.Date, ev.Time,
		ev.TotalAmount, ev.PaymentType, ev.TransactionUUID, ev.RefID))
}

// HandleCanceled appends a booking.canceled event to the audit file.
func (c *Consumer) HandleCanceled(body []byte) error {
	var ev BookingCanceledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return c.appendLine(fmt.Sprintf("[%s] Booking canceled | booking_id=%d | customer_id=%d | facility_id=%d | transaction_uuid=%s | total=%s | refund_due=%t | reason=%q\n",
		ev.CanceledAt, ev.BookingID, ev.CustomerID, ev.FacilityID, ev.TransactionUUID, ev.TotalAmount, ev.RefundDue, ev.Reason))
}

func (c *Consumer) appendLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

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
