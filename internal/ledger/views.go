package ledger

import (
	"time"

	"kimbiofarm-backend/internal/models"
)

// ReceiptView is a receipt row joined with its plant for listings.
type ReceiptView struct {
	ID          uint      `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Quantity    float64   `json:"quantity"`
	UnitCost    float64   `json:"unit_cost"`
	ShippingFee float64   `json:"shipping_fee"`
	TotalCost   float64   `json:"total_cost"`
	Date        string    `json:"date"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
}

type DispatchView struct {
	ID        uint      `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Quantity  float64   `json:"quantity"`
	Date      string    `json:"date"`
	Reason    string    `json:"reason"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

const DateLayout = "2006-01-02"

// NewReceiptView expects r.Plant to be preloaded.
func NewReceiptView(r models.Receipt) ReceiptView {
	return ReceiptView{
		ID:          r.ID,
		Code:        r.Plant.Code,
		Name:        r.Plant.Name,
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		ShippingFee: r.ShippingFee,
		TotalCost:   r.TotalCost,
		Date:        r.Date.UTC().Format(DateLayout),
		Note:        r.Note,
		CreatedAt:   r.CreatedAt,
	}
}

func NewDispatchView(d models.Dispatch) DispatchView {
	return DispatchView{
		ID:        d.ID,
		Code:      d.Plant.Code,
		Name:      d.Plant.Name,
		Quantity:  d.Quantity,
		Date:      d.Date.UTC().Format(DateLayout),
		Reason:    d.Reason,
		Note:      d.Note,
		CreatedAt: d.CreatedAt,
	}
}
