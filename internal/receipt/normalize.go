package receipt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zombor/receipt-extractor/internal/scanning"
)

// UnknownText is used for company and date when the model did not return them
const UnknownText = "Unknown"

var (
	companyKeys     = []string{"Company", "Store", "Merchant"}
	dateKeys        = []string{"Date"}
	itemsKeys       = []string{"Items"}
	deductionKeys   = []string{"Deduction", "Discount"}
	totalKeys       = []string{"Total", "GrandTotal"}
	descriptionKeys = []string{"Description", "Name", "Item"}
	quantityKeys    = []string{"Quantity", "Qty"}
	unitPriceKeys   = []string{"UnitPrice", "Price"}
	itemTotalKeys   = []string{"Total", "Amount"}
	productTypeKeys = []string{"ProductType", "Category"}
)

var productTypeAliases = map[string]string{
	"cloth":            "clothing",
	"clothes":          "clothing",
	"clothing/cloth":   "clothing",
	"alcohol":          "alcoholic drink",
	"alcoholic drinks": "alcoholic drink",
	"electric devices": "electric device",
	"electronics":      "electric device",
	"drugstore":        "drugstore product",
}

var (
	thousandsComma = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	currencyMarks  = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", " ", "", "\u00a0", "")
)

// Normalize validates a decoded model object and applies the field defaults.
//
// Company and Date default to "Unknown". Deduction stays null when absent. Total must be
// numeric and Items must be a list; every item must carry Quantity, UnitPrice and Total.
// Violations fail with ErrMissingRequiredField and are never repaired.
func Normalize(parsed map[string]any) (*Receipt, error) {
	fields := newFieldSet(parsed)

	rawTotal, ok := fields.get(totalKeys...)
	if !ok {
		return nil, &FieldError{Field: "Total", Reason: "is missing"}
	}
	total, ok := toDecimal(rawTotal)
	if !ok {
		return nil, &FieldError{Field: "Total", Reason: "is not numeric"}
	}

	rawItems, ok := fields.get(itemsKeys...)
	if !ok {
		return nil, &FieldError{Field: "Items", Reason: "is missing"}
	}
	list, ok := rawItems.([]any)
	if !ok {
		return nil, &FieldError{Field: "Items", Reason: "is not a list"}
	}

	items := make([]LineItem, 0, len(list))
	for i, raw := range list {
		item, err := normalizeItem(i, raw)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	receipt := &Receipt{
		Company: textOrUnknown(fields, companyKeys...),
		Date:    textOrUnknown(fields, dateKeys...),
		Items:   items,
		Total:   total,
	}

	if rawDeduction, ok := fields.get(deductionKeys...); ok {
		if d, ok := toDecimal(rawDeduction); ok {
			receipt.Deduction = decimal.NewNullDecimal(d)
		} else {
			slog.Warn("Ignoring non-numeric deduction", "value", fmt.Sprint(rawDeduction))
		}
	}

	return receipt, nil
}

func normalizeItem(index int, raw any) (LineItem, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return LineItem{}, &FieldError{Field: fmt.Sprintf("Items[%d]", index), Reason: "is not an object"}
	}
	fields := newFieldSet(obj)

	item := LineItem{
		ProductType: normalizeProductType(fields),
	}
	if v, ok := fields.get(descriptionKeys...); ok {
		item.Description = strings.TrimSpace(fmt.Sprint(v))
	}

	numeric := []struct {
		name string
		keys []string
		dst  *decimal.NullDecimal
	}{
		{"Quantity", quantityKeys, &item.Quantity},
		{"UnitPrice", unitPriceKeys, &item.UnitPrice},
		{"Total", itemTotalKeys, &item.Total},
	}
	for _, n := range numeric {
		v, ok := fields.get(n.keys...)
		if !ok {
			return LineItem{}, &FieldError{Field: fmt.Sprintf("Items[%d].%s", index, n.name), Reason: "is missing"}
		}
		if d, ok := toDecimal(v); ok {
			*n.dst = decimal.NewNullDecimal(d)
		}
	}

	return item, nil
}

// normalizeProductType maps the model's label onto the closed category set.
// Unrecognised labels are kept as sent; only an absent label becomes "unknown".
func normalizeProductType(fields fieldSet) string {
	v, ok := fields.get(productTypeKeys...)
	if !ok {
		return scanning.UnknownProductType
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return scanning.UnknownProductType
	}

	lower := strings.ToLower(s)
	if lower == scanning.UnknownProductType {
		return lower
	}
	for _, t := range scanning.ProductTypes {
		if lower == t {
			return t
		}
	}
	if canonical, ok := productTypeAliases[lower]; ok {
		return canonical
	}
	return s
}

func textOrUnknown(fields fieldSet, keys ...string) string {
	v, ok := fields.get(keys...)
	if !ok {
		return UnknownText
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return UnknownText
	}
	return s
}

// fieldSet looks keys up case-insensitively, ignoring spaces, underscores and hyphens.
// Null values count as absent.
type fieldSet struct {
	exact      map[string]any
	normalized map[string]any
}

func newFieldSet(m map[string]any) fieldSet {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// first key in sorted order wins so duplicates resolve the same way every time
	sort.Strings(keys)

	normalized := make(map[string]any, len(m))
	for _, k := range keys {
		nk := normalizeKey(k)
		if _, seen := normalized[nk]; !seen {
			normalized[nk] = m[k]
		}
	}
	return fieldSet{exact: m, normalized: normalized}
}

func (f fieldSet) get(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := f.exact[k]; ok && v != nil {
			return v, true
		}
		if v, ok := f.normalized[normalizeKey(k)]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k))
}

// toDecimal coerces a decoded JSON value into an exact decimal
func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		d, err := decimal.NewFromString(normalizeNumericString(n))
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// normalizeNumericString strips currency marks and thousands commas. A dot is always the
// decimal point; a lone comma with no dot is read as a decimal comma.
func normalizeNumericString(s string) string {
	compact := currencyMarks.Replace(strings.TrimSpace(s))
	if _, err := decimal.NewFromString(compact); err == nil {
		return compact
	}
	switch {
	case thousandsComma.MatchString(compact):
		return strings.ReplaceAll(compact, ",", "")
	case strings.Contains(compact, ",") && !strings.Contains(compact, "."):
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
