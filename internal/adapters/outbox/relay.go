// Package outbox forwards session events written by the postgres store to
// the message broker.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/parksys/parking-service/internal/config"
	"github.com/parksys/parking-service/internal/core/ports"
)

const (
	listenerMinReconnectInterval = 10 * time.Second
	listenerMaxReconnectInterval = time.Minute
	outboxChannelName            = "outbox_channel"

	eventProcessTimeout     = 30 * time.Second
	batchProcessTimeout     = 60 * time.Second
	periodicProcessInterval = 90 * time.Second

	healthCheckStaleThreshold = 5 * time.Minute

	maxEventsPerBatch = 100
)

// Relay listens for PostgreSQL NOTIFY signals on the outbox_channel
// and publishes the referenced events.
type Relay struct {
	db        *sql.DB
	publisher ports.SessionEventPublisher
	listener  *pq.Listener
	dbURL     string
	dbCB      *gobreaker.CircuitBreaker
	logger    *zerolog.Logger

	mu            sync.RWMutex
	lastProcessed time.Time
	healthy       bool
}

type record struct {
	ID        string
	EventType string
	Payload   []byte
}

func NewRelay(db *sql.DB, dbURL string, publisher ports.SessionEventPublisher, logger *zerolog.Logger) *Relay {
	return &Relay{
		db:            db,
		dbURL:         dbURL,
		publisher:     publisher,
		dbCB:          config.NewCircuitBreaker(config.BreakerRelayPostgres),
		logger:        logger,
		lastProcessed: time.Now(),
		healthy:       true,
	}
}

// IsHealthy reports whether the process is alive (liveness probe). An open
// breaker is degraded but recoverable, so it is not checked here.
func (r *Relay) IsHealthy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy
}

// IsReady reports whether events are flowing (readiness probe).
func (r *Relay) IsReady() bool {
	if r.dbCB.State() == gobreaker.StateOpen {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if time.Since(r.lastProcessed) > healthCheckStaleThreshold {
		return false
	}
	return r.healthy
}

func (r *Relay) markProcessed() {
	r.mu.Lock()
	r.lastProcessed = time.Now()
	r.healthy = true
	r.mu.Unlock()
}

func (r *Relay) setHealthy(v bool) {
	r.mu.Lock()
	r.healthy = v
	r.mu.Unlock()
}

// Start listens for outbox notifications until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.Error().Err(err).Msg("outbox listener error")
		}
	}

	r.listener = pq.NewListener(r.dbURL, listenerMinReconnectInterval, listenerMaxReconnectInterval, reportProblem)
	defer r.listener.Close()

	if err := r.listener.Listen(outboxChannelName); err != nil {
		return err
	}
	r.logger.Info().Str("channel", outboxChannelName).Msg("listening for outbox notifications")

	// Catch up on events written while the relay was down.
	if err := r.ProcessPending(ctx); err != nil {
		r.logger.Error().Err(err).Msg("error processing startup backlog")
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("outbox relay shutting down")
			return ctx.Err()

		case notification := <-r.listener.Notify:
			if notification == nil {
				r.logger.Warn().Msg("listener connection lost, reconnecting")
				r.setHealthy(false)
				continue
			}

			if err := r.processEventByID(ctx, notification.Extra); err != nil {
				r.logger.Error().Err(err).Str("event_id", notification.Extra).Msg("error processing event")
			} else {
				r.markProcessed()
			}

		case <-time.After(periodicProcessInterval):
			go r.listener.Ping()

			if err := r.ProcessPending(ctx); err != nil {
				r.logger.Error().Err(err).Msg("error in periodic processing")
			} else {
				r.markProcessed()
			}
		}
	}
}

// dispatch publishes one outbox record. It reports whether the record may
// be marked processed: undecodable payloads and unknown types are skipped
// so they are not retried forever.
func (r *Relay) dispatch(ctx context.Context, rec record) (bool, error) {
	switch ports.SessionEventType(rec.EventType) {
	case ports.SessionOpened, ports.SessionClosed, ports.SessionsReset:
	default:
		r.logger.Warn().Str("event_id", rec.ID).Str("type", rec.EventType).Msg("skipping unknown event type")
		return true, nil
	}

	var evt ports.SessionEvent
	if err := json.Unmarshal(rec.Payload, &evt); err != nil {
		r.logger.Error().Err(err).Str("event_id", rec.ID).Msg("invalid outbox payload")
		return true, nil
	}

	if err := r.publisher.PublishSessionEvent(ctx, evt); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Relay) processEventByID(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, eventProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		var rec record
		err = tx.QueryRowContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE id = $1 AND processed_at IS NULL
			FOR UPDATE SKIP LOCKED`, eventID).Scan(&rec.ID, &rec.EventType, &rec.Payload)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		done, err := r.dispatch(ctx, rec)
		if err != nil {
			return nil, err
		}
		if done {
			if err := markRecord(ctx, tx, rec.ID); err != nil {
				return nil, err
			}
		}
		return nil, tx.Commit()
	})
	return err
}

// ProcessPending publishes every unprocessed event, oldest first.
func (r *Relay) ProcessPending(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, batchProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE processed_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, maxEventsPerBatch)
		if err != nil {
			return nil, err
		}

		var records []record
		for rows.Next() {
			var rec record
			if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload); err != nil {
				rows.Close()
				return nil, err
			}
			records = append(records, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, rec := range records {
			done, err := r.dispatch(ctx, rec)
			if err != nil {
				// Keep order: later events wait for this one.
				r.logger.Error().Err(err).Str("event_id", rec.ID).Msg("failed to publish event")
				break
			}
			if !done {
				continue
			}
			if err := markRecord(ctx, tx, rec.ID); err != nil {
				return nil, err
			}
			r.logger.Debug().Str("event_id", rec.ID).Str("type", rec.EventType).Msg("processed event")
		}

		return nil, tx.Commit()
	})
	return err
}

func markRecord(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	return err
}
