package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/db"
)

// OutboxEntry is a stored notification waiting for delivery.
type OutboxEntry struct {
	ID            uuid.UUID
	EventType     EventType
	AppointmentID uuid.UUID
	Payload       json.RawMessage
	CreatedAt     time.Time
}

// OutboxStore persists built messages so a separate dispatcher can deliver
// them at least once. As a Publisher it is what the emitter writes to.
type OutboxStore struct {
	pool db.Pool
}

func NewOutboxStore(pool *pgxpool.Pool) *OutboxStore {
	if pool == nil {
		panic("notify: pgx pool required")
	}
	return &OutboxStore{pool: pool}
}

func newOutboxStoreWithPool(pool db.Pool) *OutboxStore {
	return &OutboxStore{pool: pool}
}

func (s *OutboxStore) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal message: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notification_outbox (id, event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, msg.ID, string(msg.Type), msg.AppointmentID, data, msg.OccurredAt)
	if err != nil {
		return fmt.Errorf("notify: insert outbox: %w", err)
	}
	return nil
}

func (s *OutboxStore) FetchPending(ctx context.Context, limit int) ([]OutboxEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at
		FROM notification_outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("notify: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var eventType string
		var payload []byte
		if err := rows.Scan(&entry.ID, &eventType, &entry.AppointmentID, &payload, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan outbox: %w", err)
		}
		entry.EventType = EventType(eventType)
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_outbox
		SET delivered_at = now()
		WHERE id = $1 AND delivered_at IS NULL
	`, id)
	if err != nil {
		return false, fmt.Errorf("notify: mark delivered: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

type outbox interface {
	FetchPending(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
}

// Dispatcher polls the outbox and forwards entries to the real-time channel.
type Dispatcher struct {
	store     outbox
	target    Publisher
	log       logrus.FieldLogger
	batchSize int
	interval  time.Duration
}

func NewDispatcher(store *OutboxStore, target Publisher, log logrus.FieldLogger) *Dispatcher {
	return newDispatcher(store, target, log)
}

func newDispatcher(store outbox, target Publisher, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Dispatcher{
		store:     store,
		target:    target,
		log:       log,
		batchSize: 50,
		interval:  2 * time.Second,
	}
}

func (d *Dispatcher) WithBatchSize(size int) *Dispatcher {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch and returns how many entries were delivered.
// A failed entry stays pending and is retried on the next pass.
func (d *Dispatcher) Drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.log.WithError(err).Error("outbox fetch failed")
		return 0
	}

	delivered := 0
	for _, entry := range entries {
		var msg Message
		if err := json.Unmarshal(entry.Payload, &msg); err != nil {
			// retire it, it can never decode
			d.log.WithError(err).WithField("event_id", entry.ID).Error("outbox payload corrupt, skipping")
			_, _ = d.store.MarkDelivered(ctx, entry.ID)
			continue
		}
		if err := d.target.Publish(ctx, msg); err != nil {
			d.log.WithError(err).WithFields(logrus.Fields{
				"event_id":   entry.ID,
				"event_type": entry.EventType,
			}).Error("outbox delivery failed")
			continue
		}
		ok, err := d.store.MarkDelivered(ctx, entry.ID)
		if err != nil {
			d.log.WithError(err).WithField("event_id", entry.ID).Error("failed to mark outbox delivered")
			continue
		}
		if ok {
			delivered++
			d.log.WithFields(logrus.Fields{
				"event_id":   entry.ID,
				"event_type": entry.EventType,
			}).Debug("outbox delivered")
		}
	}
	return delivered
}
