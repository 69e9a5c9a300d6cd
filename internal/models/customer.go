package models

import "github.com/google/uuid"

// Customer is keyed by normalized phone digits per restaurant.
type Customer struct {
	BaseModel
	RestaurantID uuid.UUID         `gorm:"type:uuid;uniqueIndex:idx_customers_restaurant_phone" json:"restaurant_id"`
	Phone        string            `gorm:"uniqueIndex:idx_customers_restaurant_phone" json:"phone"`
	Name         string            `json:"name"`
	Addresses    []CustomerAddress `json:"addresses,omitempty"`
}

type CustomerAddress struct {
	BaseModel
	CustomerID   uuid.UUID `gorm:"type:uuid;index" json:"customer_id"`
	Label        string    `json:"label"`
	AddressLine  string    `json:"address_line"`
	Number       string    `json:"number"`
	Complement   string    `json:"complement"`
	Neighborhood string    `json:"neighborhood"`
	City         string    `json:"city"`
	PostalCode   string    `json:"postal_code"`
}
