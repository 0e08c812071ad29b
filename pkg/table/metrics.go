package table

import (
	"sort"
	"strings"
)

// Required columns of a sales table.
const (
	ColumnProduct  = "Product"
	ColumnSales    = "Sales"
	ColumnQuantity = "Quantity"
	ColumnDiscount = "Discount"
	ColumnProfit   = "Profit"
)

var requiredColumns = []string{ColumnProduct, ColumnSales, ColumnQuantity, ColumnDiscount, ColumnProfit}

// Metrics is the computed summary of one sales table.
type Metrics struct {
	TotalRevenue          float64
	AvgDiscount           float64
	BestSellingProduct    string
	MostProfitableProduct string
	MaxDiscountProduct    string
}

// Calculate runs the five reductions in a single pass over the table.
// It fails before computing anything when a required column is missing or the
// table has no rows, so a metrics record is always all-or-nothing.
func Calculate(t *Table) (*Metrics, error) {
	for _, col := range requiredColumns {
		if t.ColumnIndex(col) < 0 {
			return nil, &MissingColumnError{Column: col}
		}
	}
	if len(t.Rows) == 0 {
		return nil, ErrNoRows
	}

	prodIdx := t.ColumnIndex(ColumnProduct)
	salesIdx := t.ColumnIndex(ColumnSales)
	qtyIdx := t.ColumnIndex(ColumnQuantity)
	discIdx := t.ColumnIndex(ColumnDiscount)
	profitIdx := t.ColumnIndex(ColumnProfit)

	var (
		totalRevenue  float64
		discountSum   float64
		discountCount int

		qtyByProduct    = map[string]float64{}
		profitByProduct = map[string]float64{}

		maxDiscount        float64
		maxDiscountProduct string
		maxDiscountSeen    bool
	)

	for _, row := range t.Rows {
		if v, ok := cellFloat(row, salesIdx); ok {
			totalRevenue += v
		}
		if v, ok := cellFloat(row, discIdx); ok {
			discountSum += v
			discountCount++
			// strict > keeps the first occurring row on ties
			if !maxDiscountSeen || v > maxDiscount {
				maxDiscount = v
				maxDiscountProduct = cellString(row, prodIdx)
				maxDiscountSeen = true
			}
		}

		product := cellString(row, prodIdx)
		if product == "" {
			// rows without a product stay out of the groupings, like a
			// missing group key
			continue
		}
		if _, seen := qtyByProduct[product]; !seen {
			qtyByProduct[product] = 0
			profitByProduct[product] = 0
		}
		if v, ok := cellFloat(row, qtyIdx); ok {
			qtyByProduct[product] += v
		}
		if v, ok := cellFloat(row, profitIdx); ok {
			profitByProduct[product] += v
		}
	}

	if !maxDiscountSeen {
		return nil, &NoNumericError{Column: ColumnDiscount}
	}
	if len(qtyByProduct) == 0 {
		return nil, ErrNoProducts
	}

	avgDiscount := 0.0
	if discountCount > 0 {
		avgDiscount = discountSum / float64(discountCount)
	}

	return &Metrics{
		TotalRevenue:          totalRevenue,
		AvgDiscount:           avgDiscount,
		BestSellingProduct:    argmaxGroup(qtyByProduct),
		MostProfitableProduct: argmaxGroup(profitByProduct),
		MaxDiscountProduct:    maxDiscountProduct,
	}, nil
}

// argmaxGroup picks the key with the largest summed value; ties resolve to
// the lexically first key, matching grouped iteration order.
func argmaxGroup(sums map[string]float64) string {
	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if sums[k] > sums[best] {
			best = k
		}
	}
	return best
}

func cellString(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
