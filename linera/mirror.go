package linera

import (
	"context"
	"fmt"
	"time"

	"github.com/AlexZinkM/linera-client/internal/model"
	"github.com/AlexZinkM/linera-client/internal/watch"
)

// Upserter writes rows to a table, merging rows that collide on onConflict.
type Upserter interface {
	Upsert(ctx context.Context, table, onConflict string, rows any) error
}

// EventRow is the mirrored form of an event.
type EventRow struct {
	ApplicationID string    `json:"application_id"`
	Sequence      uint64    `json:"sequence"`
	ChainID       string    `json:"chain_id,omitempty"`
	Height        uint64    `json:"height"`
	Payload       any       `json:"payload"`
	ReceivedAt    time.Time `json:"received_at"`
}

// MirrorHandler returns a watch handler that upserts every event into table
// keyed by (application_id, sequence). Redelivered events overwrite their row.
func MirrorHandler(db Upserter, table string) watch.Handler {
	return func(ctx context.Context, ev model.Event) error {
		row := EventRow{
			ApplicationID: ev.ApplicationID,
			Sequence:      ev.Sequence,
			ChainID:       ev.ChainID,
			Height:        ev.Height,
			ReceivedAt:    ev.ReceivedAt,
		}
		if len(ev.Payload) > 0 {
			row.Payload = ev.Payload
		}
		if err := db.Upsert(ctx, table, "application_id,sequence", []EventRow{row}); err != nil {
			return fmt.Errorf("failed to mirror event %d: %w", ev.Sequence, err)
		}
		return nil
	}
}
