package models

import "time"

// Receipt: inbound stock event (nhập kho). Never updated after creation.
type Receipt struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PlantID     uint      `gorm:"index;not null" json:"plant_id"`
	Plant       Plant     `json:"-"`
	Quantity    float64   `gorm:"not null" json:"quantity"`
	UnitCost    float64   `gorm:"not null" json:"unit_cost"`
	ShippingFee float64   `gorm:"not null;default:0" json:"shipping_fee"`
	TotalCost   float64   `gorm:"not null" json:"total_cost"` // Quantity*UnitCost + ShippingFee
	Date        time.Time `gorm:"index;not null" json:"date"`
	Note        string    `gorm:"type:text" json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}
