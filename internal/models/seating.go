package models

import "github.com/google/uuid"

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatOccupied  SeatStatus = "occupied"
	SeatClosing   SeatStatus = "closing"
)

// SeatKind distinguishes physical tables from tabs.
type SeatKind string

const (
	KindTable SeatKind = "table"
	KindTab   SeatKind = "tab"
)

// Table status is derived from its open orders.
type Table struct {
	BaseModel
	RestaurantID uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_tables_restaurant_number" json:"restaurant_id"`
	Number       int        `gorm:"uniqueIndex:idx_tables_restaurant_number" json:"number"`
	Status       SeatStatus `gorm:"size:16;default:available" json:"status"`
}

// Tab plays the role of a table without physical seating.
type Tab struct {
	BaseModel
	RestaurantID uuid.UUID  `gorm:"type:uuid;index" json:"restaurant_id"`
	Number       int        `json:"number"`
	CustomerName string     `json:"customer_name"`
	Status       SeatStatus `gorm:"size:16;default:available" json:"status"`
}

// SeatRef points at the table or tab an order is held against.
type SeatRef struct {
	Kind SeatKind
	ID   uuid.UUID
}

// SeatOf returns the table or tab an order references, if any.
func SeatOf(o *Order) (SeatRef, bool) {
	switch {
	case o.TableID != nil:
		return SeatRef{Kind: KindTable, ID: *o.TableID}, true
	case o.TabID != nil:
		return SeatRef{Kind: KindTab, ID: *o.TabID}, true
	}
	return SeatRef{}, false
}
