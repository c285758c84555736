package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"pinepulse/internal/config"
	"pinepulse/internal/models"
)

// RecordSink receives resolved records from a live feed.
type RecordSink interface {
	Append(records ...models.TransactionRecord)
}

// saleFetcher abstracts kafka.Reader for testability.
type saleFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// saleEvent is the wire shape of one POS sale line.
type saleEvent struct {
	Timestamp      time.Time `json:"timestamp"`
	StoreID        string    `json:"store_id"`
	ItemID         string    `json:"item_id"`
	Category       string    `json:"category,omitempty"`
	Amount         float64   `json:"amount"`
	QuantitySold   *float64  `json:"quantity_sold,omitempty"`
	StockRemaining *float64  `json:"stock_remaining,omitempty"`
}

// Consumer streams sale events from Kafka into the analytics store. Malformed
// or invalid events are committed and dropped so the feed never wedges.
type Consumer struct {
	reader saleFetcher
	sink   RecordSink
	logger *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, sink RecordSink, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    cfg.Topic,
			MinBytes: 1,
			MaxBytes: 10 << 20,
			MaxWait:  500 * time.Millisecond,
		}),
		sink:   sink,
		logger: logger,
	}
}

// Run consumes until ctx is cancelled. Cancellation is a clean exit.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if rec, ok := c.decode(msg.Value); ok {
			c.sink.Append(rec)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) decode(value []byte) (models.TransactionRecord, bool) {
	var ev saleEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		c.logger.Warn("dropping unparseable sale event", "error", err)
		return models.TransactionRecord{}, false
	}
	if ev.ItemID == "" || ev.Amount < 0 || ev.Timestamp.IsZero() {
		c.logger.Warn("dropping invalid sale event", "item", ev.ItemID, "amount", ev.Amount)
		return models.TransactionRecord{}, false
	}

	return models.TransactionRecord{
		Timestamp:      ev.Timestamp,
		StoreID:        ev.StoreID,
		ItemID:         ev.ItemID,
		Category:       ev.Category,
		Amount:         ev.Amount,
		QuantitySold:   ev.QuantitySold,
		StockRemaining: ev.StockRemaining,
	}, true
}
