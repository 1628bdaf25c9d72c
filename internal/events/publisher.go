// Package events writes studio integration events through a transactional outbox.
package events

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/studiokit/kassza/pkg/telemetry/correlation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Publisher records events for asynchronous delivery. Events written through
// PublishTx share the caller's transaction, so they only become visible when
// the surrounding business write commits.
type Publisher interface {
	Publish(ctx context.Context, eventType, dedupeKey string, payload map[string]any) error
	PublishTx(ctx context.Context, tx *gorm.DB, eventType, dedupeKey string, payload map[string]any) error
}

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node) Publisher {
	return &outboxPublisher{
		db:    db,
		genID: genID,
	}
}

func (p *outboxPublisher) Publish(ctx context.Context, eventType, dedupeKey string, payload map[string]any) error {
	return p.PublishTx(ctx, p.db, eventType, dedupeKey, payload)
}

func (p *outboxPublisher) PublishTx(ctx context.Context, tx *gorm.DB, eventType, dedupeKey string, payload map[string]any) error {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return nil
	}

	var key *string
	if trimmed := strings.TrimSpace(dedupeKey); trimmed != "" {
		key = &trimmed
	}

	body := datatypes.JSONMap{}
	for k, v := range payload {
		if k == "" {
			continue
		}
		body[k] = v
	}

	// Requests and scheduler runs seed the correlation id; a lone
	// publish gets a fresh one.
	_, correlationID := correlation.EnsureCorrelationID(ctx)

	// Replays land on the dedupe key and become no-ops.
	return tx.WithContext(ctx).Exec(
		`INSERT INTO studio_events (id, event_type, payload, dedupe_key, correlation_id, published, created_at)
		 VALUES (?, ?, ?, ?, ?, false, ?)
		 ON CONFLICT (dedupe_key) DO NOTHING`,
		p.genID.Generate(),
		eventType,
		body,
		key,
		correlationID,
		time.Now().UTC(),
	).Error
}
