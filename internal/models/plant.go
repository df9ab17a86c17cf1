package models

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// Plant: one stock-keeping unit of the nursery, identified by Code.
// Stock is a running total maintained by receipts and dispatches.
type Plant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:50;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:200;not null;index" json:"name"`
	Stock     float64   `gorm:"not null;default:0;index" json:"stock"`
	ImagePath string    `gorm:"size:255" json:"image_path,omitempty"`
	SearchKey string    `gorm:"size:600;index" json:"-"` // see PlantSearchKey
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Receipts   []Receipt  `gorm:"foreignKey:PlantID;constraint:OnDelete:CASCADE" json:"-"`
	Dispatches []Dispatch `gorm:"foreignKey:PlantID;constraint:OnDelete:CASCADE" json:"-"`
}

func (p *Plant) BeforeCreate(tx *gorm.DB) error {
	p.SearchKey = PlantSearchKey(p.Code, p.Name)
	return nil
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldDiacritics strips Vietnamese diacritics: "Trúc Nhật" -> "Truc Nhat".
func FoldDiacritics(s string) string {
	s = strings.NewReplacer("đ", "d", "Đ", "D").Replace(s)
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return out
}

// SearchText is the form both stored keys and search terms are reduced to.
// Case folding happens here rather than in SQL, where SQLite's LOWER is ASCII only.
func SearchText(s string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
}

// PlantSearchKey holds code and name as typed plus an unaccented copy, so
// "vàng" and "vang" both find "MAI VÀNG".
func PlantSearchKey(code, name string) string {
	key := SearchText(code + " " + name)
	if folded := FoldDiacritics(key); folded != key {
		key += " " + folded
	}
	return key
}
