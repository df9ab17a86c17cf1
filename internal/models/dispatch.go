package models

import "time"

// Dispatch: outbound stock event (xuất kho): sale, loss, damage...
type Dispatch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PlantID   uint      `gorm:"index;not null" json:"plant_id"`
	Plant     Plant     `json:"-"`
	Quantity  float64   `gorm:"not null" json:"quantity"`
	Date      time.Time `gorm:"index;not null" json:"date"`
	Reason    string    `gorm:"size:200" json:"reason"`
	Note      string    `gorm:"type:text" json:"note"`
	CreatedAt time.Time `json:"created_at"`
}
