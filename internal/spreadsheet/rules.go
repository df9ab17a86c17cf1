package spreadsheet

import (
	"strings"
)

type Field string

const (
	FieldCode        Field = "code"
	FieldName        Field = "name"
	FieldStock       Field = "stock"
	FieldQuantity    Field = "quantity"
	FieldUnitPrice   Field = "unit_price"
	FieldShippingFee Field = "shipping_fee"
	FieldDate        Field = "date"
	FieldNote        Field = "note"
)

// fieldOrder decides which field claims a column first when one header fits
// several fields ("số lượng tồn" is a stock column, not a quantity column).
var fieldOrder = []Field{
	FieldCode,
	FieldStock,
	FieldUnitPrice,
	FieldShippingFee,
	FieldDate,
	FieldNote,
	FieldQuantity,
	FieldName,
}

// Rule maps a normalised header to a field. Lower Priority wins.
type Rule struct {
	Field    Field
	Priority int
	Match    func(header string) bool
}

func contains(subs ...string) func(string) bool {
	return func(h string) bool {
		for _, s := range subs {
			if !strings.Contains(h, s) {
				return false
			}
		}
		return true
	}
}

func anyOf(subs ...string) func(string) bool {
	return func(h string) bool {
		for _, s := range subs {
			if strings.Contains(h, s) {
				return true
			}
		}
		return false
	}
}

// hasWord matches whole words only.
func hasWord(words ...string) func(string) bool {
	return func(h string) bool {
		for _, w := range strings.FieldsFunc(h, func(r rune) bool {
			return r == ' ' || r == '.' || r == '(' || r == ')' || r == '/' || r == '_' || r == '-'
		}) {
			for _, want := range words {
				if w == want {
					return true
				}
			}
		}
		return false
	}
}

func equals(vals ...string) func(string) bool {
	return func(h string) bool {
		for _, v := range vals {
			if h == v {
				return true
			}
		}
		return false
	}
}

func and(a, b func(string) bool) func(string) bool {
	return func(h string) bool { return a(h) && b(h) }
}

func not(f func(string) bool) func(string) bool {
	return func(h string) bool { return !f(h) }
}

// DefaultRules covers the headers used in the nursery's price and stock workbooks.
var DefaultRules = []Rule{
	{FieldCode, 1, contains("mã", "cây")},
	{FieldCode, 2, anyOf("mã hàng", "mã sp", "mã sản phẩm")},
	{FieldCode, 3, equals("mã", "code", "ma cay", "ma")},

	{FieldStock, 1, contains("tồn")},
	{FieldStock, 2, hasWord("ton", "stock")},

	{FieldUnitPrice, 1, and(contains("giá nhập"), not(contains("kho")))},
	{FieldUnitPrice, 2, contains("giá nhập kho")},
	{FieldUnitPrice, 3, anyOf("giá mua", "giá gốc", "giá vốn")},
	{FieldUnitPrice, 4, contains("giá tiền")},
	{FieldUnitPrice, 5, and(contains("giá"), not(contains("giá bán")))},
	{FieldUnitPrice, 6, contains("giá bán")},
	{FieldUnitPrice, 7, hasWord("price", "gia")},

	{FieldShippingFee, 1, contains("phí", "ship")},
	{FieldShippingFee, 2, anyOf("vận chuyển", "shipping")},
	{FieldShippingFee, 3, hasWord("ship")},

	{FieldDate, 1, contains("ngày nhập")},
	{FieldDate, 2, contains("ngày")},
	{FieldDate, 3, hasWord("date", "ngay")},

	{FieldNote, 1, contains("ghi chú")},
	{FieldNote, 2, hasWord("note", "notes")},

	{FieldQuantity, 1, contains("số lượng nhập")},
	{FieldQuantity, 2, contains("số lượng")},
	{FieldQuantity, 3, contains("sl")},
	{FieldQuantity, 4, hasWord("qty", "quantity")},

	{FieldName, 1, contains("tên", "sản phẩm")},
	{FieldName, 2, contains("tên hàng")},
	{FieldName, 3, contains("loại cây")},
	{FieldName, 4, contains("tên cây")},
	{FieldName, 5, anyOf("tên", "hàng", "sản phẩm")},
	{FieldName, 6, hasWord("name")},
}

type Matcher struct {
	rules []Rule
}

func NewMatcher(rules []Rule) *Matcher {
	return &Matcher{rules: rules}
}

// Columns maps fields to zero-based column indexes.
type Columns map[Field]int

func (c Columns) Has(f Field) bool {
	_, ok := c[f]
	return ok
}

// Cell returns the trimmed value of field f in row, or "" when absent.
func (c Columns) Cell(row []string, f Field) string {
	idx, ok := c[f]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// Match assigns columns to fields. For each field the best priority rule wins;
// ties go to the column with more non-empty values in data, then to the leftmost.
func (m *Matcher) Match(headers []string, data [][]string) Columns {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	filled := make([]int, len(headers))
	for _, row := range data {
		for i := range headers {
			if i < len(row) && strings.TrimSpace(row[i]) != "" {
				filled[i]++
			}
		}
	}

	cols := Columns{}
	claimed := make(map[int]bool)
	for _, field := range fieldOrder {
		best, bestPriority := -1, 0
		for i, h := range normalized {
			if h == "" || claimed[i] {
				continue
			}
			p, ok := m.priority(field, h)
			if !ok {
				continue
			}
			if best == -1 || p < bestPriority || (p == bestPriority && filled[i] > filled[best]) {
				best, bestPriority = i, p
			}
		}
		if best >= 0 {
			cols[field] = best
			claimed[best] = true
		}
	}
	return cols
}

func (m *Matcher) priority(field Field, header string) (int, bool) {
	best, found := 0, false
	for _, r := range m.rules {
		if r.Field != field || !r.Match(header) {
			continue
		}
		if !found || r.Priority < best {
			best, found = r.Priority, true
		}
	}
	return best, found
}

const headerScanRows = 5

// Locate finds the header row among the first rows of a sheet: the row whose
// headers match the most fields. It returns the row index and its columns.
func (m *Matcher) Locate(rows [][]string) (int, Columns) {
	bestIdx, bestCols := -1, Columns{}
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		cols := m.Match(rows[i], rows[i+1:])
		if len(cols) > len(bestCols) {
			bestIdx, bestCols = i, cols
		}
	}
	return bestIdx, bestCols
}
