package receipt

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Aggregation holds the derived figures for a receipt. Discount and category failures are
// reported separately so one never hides the other.
type Aggregation struct {
	Summary     Summary
	Categories  []CategoryTotal // nil when CategoryErr is set
	DiscountErr error
	CategoryErr error
	Skipped     []int // items left out of the category totals because their product type was malformed
}

// Aggregate computes the summary row and the per-category totals.
// Discount is the sum of item totals minus the receipt total, unclamped.
func Aggregate(r *Receipt) Aggregation {
	agg := Aggregation{
		Summary: Summary{
			Company: r.Company,
			Date:    r.Date,
			Total:   r.Total,
		},
	}

	sum, err := itemsTotal(r.Items)
	if err != nil {
		agg.DiscountErr = fmt.Errorf("computing discount: %w", err)
	} else {
		agg.Summary.Discount = decimal.NewNullDecimal(sum.Sub(r.Total))
	}

	agg.Categories, agg.Skipped, agg.CategoryErr = categoryTotals(r.Items)
	if agg.CategoryErr != nil {
		agg.CategoryErr = fmt.Errorf("computing category totals: %w", agg.CategoryErr)
	}

	return agg
}

func itemsTotal(items []LineItem) (decimal.Decimal, error) {
	sum := decimal.Zero
	for i, item := range items {
		if !item.Total.Valid {
			return decimal.Decimal{}, fmt.Errorf("%w: item %d total is not numeric", ErrPartialData, i+1)
		}
		sum = sum.Add(item.Total.Decimal)
	}
	return sum, nil
}

// categoryTotals groups item totals by product type, sorted by product type
func categoryTotals(items []LineItem) ([]CategoryTotal, []int, error) {
	totals := make(map[string]decimal.Decimal)
	var skipped []int
	for i, item := range items {
		if item.ProductType == "" {
			skipped = append(skipped, i)
			continue
		}
		if !item.Total.Valid {
			return nil, nil, fmt.Errorf("%w: item %d total is not numeric", ErrPartialData, i+1)
		}
		totals[item.ProductType] = totals[item.ProductType].Add(item.Total.Decimal)
	}

	categories := make([]CategoryTotal, 0, len(totals))
	for productType, total := range totals {
		categories = append(categories, CategoryTotal{ProductType: productType, Total: total})
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].ProductType < categories[j].ProductType
	})

	return categories, skipped, nil
}
