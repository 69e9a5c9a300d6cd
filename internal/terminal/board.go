// Package terminal is the client side of the order pipeline: it keeps a
// staff device's view of open orders, tables and tabs current by
// listening to the change feed and re-fetching, and falls back to polling
// when the feed is down.
package terminal

import (
	"strings"
	"time"

	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"
	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
)

// boardKey orders a column by creation time, then order number, then id.
type boardKey struct {
	createdAt time.Time
	number    int64
	id        uuid.UUID
}

func compareKeys(a, b boardKey) int {
	switch {
	case a.createdAt.Before(b.createdAt):
		return -1
	case a.createdAt.After(b.createdAt):
		return 1
	case a.number < b.number:
		return -1
	case a.number > b.number:
		return 1
	}
	return strings.Compare(a.id.String(), b.id.String())
}

// BoardStatuses are the columns shown on a kitchen board.
var BoardStatuses = []models.OrderStatus{models.StatusPending, models.StatusPreparing, models.StatusReady}

// Board groups open orders into status columns, oldest first.
type Board struct {
	columns map[models.OrderStatus]*rbt.Tree[boardKey, models.Order]
	index   map[uuid.UUID]boardKey
}

func NewBoard(orders []models.Order) *Board {
	b := &Board{
		columns: make(map[models.OrderStatus]*rbt.Tree[boardKey, models.Order], len(BoardStatuses)),
		index:   make(map[uuid.UUID]boardKey, len(orders)),
	}
	for _, st := range BoardStatuses {
		b.columns[st] = rbt.NewWith[boardKey, models.Order](compareKeys)
	}
	for _, o := range orders {
		column, ok := b.columns[o.Status]
		if !ok {
			continue
		}
		key := boardKey{createdAt: o.CreatedAt, number: o.OrderNumber, id: o.ID}
		column.Put(key, o)
		b.index[o.ID] = key
	}
	return b
}

// Column returns one status column, oldest order first.
func (b *Board) Column(status models.OrderStatus) []models.Order {
	column, ok := b.columns[status]
	if !ok {
		return nil
	}
	return column.Values()
}

// Oldest returns the order waiting longest in a column.
func (b *Board) Oldest(status models.OrderStatus) (models.Order, bool) {
	column, ok := b.columns[status]
	if !ok || column.Empty() {
		return models.Order{}, false
	}
	return column.Left().Value, true
}

func (b *Board) Find(id uuid.UUID) (models.Order, bool) {
	key, ok := b.index[id]
	if !ok {
		return models.Order{}, false
	}
	for _, column := range b.columns {
		if o, found := column.Get(key); found {
			return o, true
		}
	}
	return models.Order{}, false
}

// Counts is the number of orders per column.
func (b *Board) Counts() map[models.OrderStatus]int {
	counts := make(map[models.OrderStatus]int, len(b.columns))
	for st, column := range b.columns {
		counts[st] = column.Size()
	}
	return counts
}

func (b *Board) Len() int {
	return len(b.index)
}
