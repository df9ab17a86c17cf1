package spreadsheet

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"kimbiofarm-backend/internal/ledger"
)

// ReconcileHeaders is the layout the importer reads back.
var ReconcileHeaders = []string{"Tên hàng", "Số lượng", "Giá tiền", "Phí ship", "Ngày"}

const minOverlap = 0.5

// PriceList maps product names to their highest listed purchase price.
type PriceList map[string]float64

// StockList is the content of a stock count workbook keyed by product name.
type StockList struct {
	Stock    map[string]float64
	Prices   map[string]float64
	Shipping map[string]float64
}

// ReadPriceList reads every sheet of a price workbook. When a name appears more
// than once the highest price is kept; names without a positive price are ignored.
func ReadPriceList(r io.Reader, m *Matcher) (PriceList, error) {
	sheets, err := readSheets(r, m)
	if err != nil {
		return nil, err
	}

	prices := PriceList{}
	for _, s := range sheets {
		if !s.Columns.Has(FieldName) || !s.Columns.Has(FieldUnitPrice) {
			continue
		}
		for _, row := range s.Rows {
			name := s.Columns.Cell(row, FieldName)
			if IsJunkName(name) || len([]rune(name)) < 2 {
				continue
			}
			price, ok := ParseMoney(s.Columns.Cell(row, FieldUnitPrice))
			if !ok || price <= 0 {
				continue
			}
			if price > prices[name] {
				prices[name] = price
			}
		}
	}
	return prices, nil
}

// ReadStockList reads the first sheet with a name column.
func ReadStockList(r io.Reader, m *Matcher) (*StockList, error) {
	sheets, err := readSheets(r, m)
	if err != nil {
		return nil, err
	}

	list := &StockList{
		Stock:    map[string]float64{},
		Prices:   map[string]float64{},
		Shipping: map[string]float64{},
	}
	for _, s := range sheets {
		if !s.Columns.Has(FieldName) {
			continue
		}
		qtyField := FieldStock
		if !s.Columns.Has(FieldStock) {
			qtyField = FieldQuantity
		}
		for _, row := range s.Rows {
			name := s.Columns.Cell(row, FieldName)
			if IsJunkName(name) {
				continue
			}
			qty, _ := ParseQuantity(s.Columns.Cell(row, qtyField))
			list.Stock[name] = qty

			if price, ok := ParseMoney(s.Columns.Cell(row, FieldUnitPrice)); ok && price > 0 {
				if _, seen := list.Prices[name]; !seen {
					list.Prices[name] = price
				}
			}
			if ship, ok := ParseMoney(s.Columns.Cell(row, FieldShippingFee)); ok {
				list.Shipping[name] = ship
			}
		}
		break
	}
	return list, nil
}

type ReconcileRow struct {
	Name        string  `json:"name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	ShippingFee float64 `json:"shipping_fee"`
	Date        string  `json:"date"`
}

type ReconcileResult struct {
	Rows      []ReconcileRow `json:"rows"`
	Matched   int            `json:"matched"`
	Unmatched int            `json:"unmatched"`
}

type pricedName struct {
	name  string
	price float64
}

// Reconcile merges a price list and a stock list into one row per product.
// Prices come from the price list first and the stock list second, matched by
// NameKey, then by the raw name, then by substring overlap above one half.
// Every product is kept; a product without a price is counted as unmatched.
func Reconcile(prices PriceList, stock *StockList, today time.Time) *ReconcileResult {
	if stock == nil {
		stock = &StockList{}
	}

	keyed := map[string]pricedName{}
	for _, name := range sortedKeys(prices) {
		if p := prices[name]; p > 0 {
			keyed[NameKey(name)] = pricedName{name, p}
		}
	}
	for _, name := range sortedKeys(stock.Prices) {
		key := NameKey(name)
		if _, ok := keyed[key]; !ok && stock.Prices[name] > 0 {
			keyed[key] = pricedName{name, stock.Prices[name]}
		}
	}

	all := map[string]struct{}{}
	for _, src := range []map[string]float64{stock.Stock, prices, stock.Prices} {
		for name := range src {
			if !IsJunkName(name) {
				all[name] = struct{}{}
			}
		}
	}

	date := today.Format(ledger.DateLayout)
	merged := map[string]*ReconcileRow{}
	for _, name := range sortedKeys(all) {
		final, price := lookupPrice(name, keyed, prices, stock.Prices)
		ship := lookupShipping(name, stock.Shipping)

		key := NameKey(final)
		if row, ok := merged[key]; ok {
			row.Quantity += stock.Stock[name]
			row.UnitPrice = max(row.UnitPrice, price)
			row.ShippingFee = max(row.ShippingFee, ship)
			continue
		}
		merged[key] = &ReconcileRow{
			Name:        final,
			Quantity:    stock.Stock[name],
			UnitPrice:   price,
			ShippingFee: ship,
			Date:        date,
		}
	}

	res := &ReconcileResult{Rows: make([]ReconcileRow, 0, len(merged))}
	for _, row := range merged {
		res.Rows = append(res.Rows, *row)
		if row.UnitPrice > 0 {
			res.Matched++
		} else {
			res.Unmatched++
		}
	}
	sort.Slice(res.Rows, func(i, j int) bool { return res.Rows[i].Name < res.Rows[j].Name })
	return res
}

func lookupPrice(name string, keyed map[string]pricedName, prices PriceList, stockPrices map[string]float64) (string, float64) {
	if hit, ok := keyed[NameKey(name)]; ok {
		return hit.name, hit.price
	}
	if p, ok := prices[name]; ok {
		return name, p
	}
	if p, ok := stockPrices[name]; ok {
		return name, p
	}

	lower := strings.ToLower(name)
	bestName, bestPrice, bestScore := "", 0.0, 0.0
	for _, candidate := range sortedKeys(prices) {
		if s := overlap(lower, strings.ToLower(candidate)); s > bestScore {
			bestName, bestPrice, bestScore = candidate, prices[candidate], s
		}
	}
	if bestScore > minOverlap {
		return bestName, bestPrice
	}
	return name, 0
}

// overlap scores substring containment by min(len)/max(len); 0 when neither contains the other.
func overlap(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return 0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	return float64(min(la, lb)) / float64(max(la, lb))
}

func lookupShipping(name string, shipping map[string]float64) float64 {
	if v, ok := shipping[name]; ok && v > 0 {
		return v
	}
	key := NameKey(name)
	for _, n := range sortedKeys(shipping) {
		if NameKey(n) == key && shipping[n] > 0 {
			return shipping[n]
		}
	}
	return 0
}

// WriteReconcile writes rows in the layout of ReconcileHeaders.
func WriteReconcile(w io.Writer, rows []ReconcileRow) error {
	out := make([][]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, []any{r.Name, r.Quantity, r.UnitPrice, r.ShippingFee, r.Date})
	}
	if err := WriteTable(w, "Tổng hợp", ReconcileHeaders, out); err != nil {
		return fmt.Errorf("write reconcile: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
