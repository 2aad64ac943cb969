// Package orderstore archives completed orders in Postgres. Archiving is an
// orchestrator-side convenience: strictly best-effort, never part of the
// turn contract.
package orderstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/merrysway/coffeebot/agent/contract"
)

// ArchivedOrder is one completed cart.
type ArchivedOrder struct {
	bun.BaseModel `bun:"table:completed_orders,alias:co"`

	ID        int64                `bun:"id,pk,autoincrement"`
	SessionID string               `bun:"session_id,notnull"`
	Items     []contractx.LineItem `bun:"items,type:jsonb"`
	Total     float64              `bun:"total,notnull"`
	CreatedAt time.Time            `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type Archive struct {
	db *bun.DB
}

func NewArchive(db *bun.DB) (*Archive, error) {
	if db == nil {
		return nil, errors.New("bun db is required")
	}
	return &Archive{db: db}, nil
}

// Init creates the archive table when it does not exist yet.
func (a *Archive) Init(ctx context.Context) error {
	_, err := a.db.NewCreateTable().
		Model((*ArchivedOrder)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// SaveCompleted persists one completed cart.
func (a *Archive) SaveCompleted(ctx context.Context, sessionID string, items []contractx.LineItem, total float64) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session id is required")
	}
	if len(items) == 0 {
		return errors.New("order is empty")
	}

	record := &ArchivedOrder{
		SessionID: sessionID,
		Items:     items,
		Total:     total,
		CreatedAt: time.Now().UTC(),
	}
	_, err := a.db.NewInsert().Model(record).Exec(ctx)
	return err
}

// Total sums the cart. LineItem.Price is already the line total, so the sum
// is over prices alone, never price times quantity.
func Total(items []contractx.LineItem) float64 {
	var total float64
	for _, item := range items {
		total += float64(item.Price)
	}
	return total
}

var closingPhrases = []string{
	"thank you for your order",
	"thanks for your order",
	"thank you for ordering",
}

// LooksComplete reports whether an assistant reply reads like the closing
// message of the order dialogue: an itemized total and a thank-you. A false
// negative only skips the archive.
func LooksComplete(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return strings.Contains(lower, "total") && strings.Contains(lower, "thank")
}
