package spreadsheet

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"kimbiofarm-backend/internal/ledger"
	"kimbiofarm-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

const maxCodeLen = 50

// NormalizeHeader lower-cases a header cell and collapses inner whitespace.
// Input is NFC composed so "tồn" typed with combining marks still matches.
func NormalizeHeader(s string) string {
	s = strings.ToLower(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// NameKey is the identity used to match product names across files:
// lower-case, NFC, whitespace and punctuation removed.
func NameKey(s string) string {
	s = strings.ToLower(norm.NFC.String(strings.TrimSpace(s)))
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsJunkName reports names that never denote a product: empty, "nan",
// or digits only once spaces, commas and dots are removed.
func IsJunkName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return true
	}
	clean := strings.NewReplacer(" ", "", ",", "", ".", "").Replace(s)
	if clean == "" {
		return true
	}
	for _, r := range clean {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var nonCodeRun = regexp.MustCompile(`[^A-Z0-9]+`)

// FoldASCII strips Vietnamese diacritics: "Trúc Nhật" -> "Truc Nhat".
func FoldASCII(s string) string {
	return models.FoldDiacritics(s)
}

// CodeFromName derives a plant code for import rows that carry no code column:
// "Trúc Nhật" -> "TRUC-NHAT".
func CodeFromName(name string) string {
	code := strings.ToUpper(FoldASCII(strings.TrimSpace(name)))
	code = strings.Trim(nonCodeRun.ReplaceAllString(code, "-"), "-")
	if len(code) > maxCodeLen {
		code = strings.TrimRight(code[:maxCodeLen], "-")
	}
	return code
}

// ParseQuantity accepts "1,200", "3.5", "12 ". Commas are thousands separators.
func ParseQuantity(s string) (float64, bool) {
	s = strings.NewReplacer(",", "", " ", "", "\u00a0", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

var groupedThousands = regexp.MustCompile(`^-?\d{1,3}([.,]\d{3})+$`)

// ParseMoney reads Vietnamese formatted amounts: "20.000", "1,250,000", "50000đ".
// Digit groups of three after "." or "," are thousands; otherwise a single "."
// is a decimal point as written by the spreadsheet itself.
func ParseMoney(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer(" ", "", "\u00a0", "", "vnđ", "", "vnd", "", "đ", "").Replace(s)
	if s == "" {
		return 0, false
	}

	if groupedThousands.MatchString(s) {
		s = strings.NewReplacer(".", "", ",", "").Replace(s)
	} else if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"01-02-06", // excelize default rendering of date cells
	"2006/01/02",
}

// ParseDate accepts the textual layouts above and Excel serial day numbers.
// The result is the calendar day at UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ledger.Day(t), true
		}
	}

	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < 1 || serial > 2958465 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return ledger.Day(t), true
}
