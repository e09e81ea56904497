// Package bootstrap selects the backends named by the configuration. It is
// shared by the api and worker binaries so both write to the same store.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"checkin/internal/attendance"
	"checkin/internal/config"
	"checkin/internal/docstore"
	"checkin/internal/queue"
	"checkin/internal/store"
)

// Backends holds the opened infrastructure. Close releases all of it.
type Backends struct {
	Store   docstore.RecordStore
	DB      *store.DB
	Redis   *store.Redis
	Queue   queue.Queue
	Claimer attendance.Claimer

	closers []io.Closer
}

// Open connects the record store, queue and claimer selected by cfg.
// Redis is dialed lazily and only when a backend needs it.
func Open(ctx context.Context, cfg config.App) (*Backends, error) {
	b := &Backends{}

	st, err := b.openStore(ctx, cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Store = st

	q, err := b.openQueue(cfg)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.Queue = q

	switch cfg.ClaimBackend {
	case "redis":
		b.Claimer = attendance.NewRedisClaimer(b.redis(cfg).Client, "checkin:claim:", 72*time.Hour)
	default:
		b.Claimer = attendance.LocalClaimer{}
	}

	log.Printf("backends: store=%s queue=%s claim=%s", b.Store.Name(), cfg.QueueBackend, cfg.ClaimBackend)
	return b, nil
}

func (b *Backends) openStore(ctx context.Context, cfg config.App) (docstore.RecordStore, error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		return docstore.NewRemoteStore(cfg.FirestoreBaseURL, cfg.FirestoreProjectID, cfg.FirestoreAPIKey, cfg.StoreTimeout, cfg.StoreRetries), nil
	case config.StorePostgres, config.StoreSQLite:
		var (
			db      *store.DB
			err     error
			dialect = docstore.DialectPostgres
		)
		if cfg.StoreBackend == config.StoreSQLite {
			dialect = docstore.DialectSQLite
			db, err = store.NewSQLite(ctx, cfg.SQLitePath)
		} else {
			db, err = store.NewPostgres(ctx, cfg.DatabaseURL)
		}
		if err != nil {
			return nil, err
		}
		b.DB = db
		b.closers = append(b.closers, db)

		sqlStore := docstore.NewSQLStore(db.Client, dialect, cfg.StoreTimeout)
		if err := sqlStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", cfg.StoreBackend, err)
		}
		return sqlStore, nil
	default:
		return docstore.NewInMemoryStore(), nil
	}
}

func (b *Backends) openQueue(cfg config.App) (queue.Queue, error) {
	switch cfg.QueueBackend {
	case "redis":
		return queue.NewRedisQueue(b.redis(cfg).Client, cfg.QueueName), nil
	case "amqp":
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.QueueName)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, q)
		return q, nil
	default:
		return queue.NewInMemory(256), nil
	}
}

func (b *Backends) redis(cfg config.App) *store.Redis {
	if b.Redis == nil {
		b.Redis = store.NewRedis(cfg.RedisAddr)
		b.closers = append(b.closers, b.Redis)
	}
	return b.Redis
}

// InProcessQueue reports whether bookkeeping must be drained by the api itself.
func (b *Backends) InProcessQueue() bool {
	_, ok := b.Queue.(*queue.InMemory)
	return ok
}

// Close releases every opened connection.
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			log.Printf("close backend: %v", err)
		}
	}
	b.closers = nil
}
