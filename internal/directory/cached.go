package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cached puts a redis read-through cache in front of another Directory.
// Cache errors fall through to the backing directory.
type Cached struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

func NewCached(next Directory, client *redis.Client, ttl time.Duration, log logrus.FieldLogger) *Cached {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cached{next: next, client: client, ttl: ttl, log: log}
}

func (c *Cached) DoctorName(ctx context.Context, id uuid.UUID) (string, error) {
	return c.lookup(ctx, "doctor", id, c.next.DoctorName)
}

func (c *Cached) PatientName(ctx context.Context, id uuid.UUID) (string, error) {
	return c.lookup(ctx, "patient", id, c.next.PatientName)
}

func (c *Cached) lookup(ctx context.Context, kind string, id uuid.UUID, load func(context.Context, uuid.UUID) (string, error)) (string, error) {
	key := fmt.Sprintf("directory:%s:%s", kind, id)

	name, err := c.client.Get(ctx, key).Result()
	if err == nil {
		return name, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.log.WithError(err).WithField("key", key).Warn("directory cache read failed")
	}

	name, err = load(ctx, id)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, name, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("key", key).Warn("directory cache write failed")
	}
	return name, nil
}
