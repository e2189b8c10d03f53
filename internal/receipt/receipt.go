package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Request is one user submission. It is built once and never modified.
type Request struct {
	Image         []byte
	Credential    string
	ExpectedItems int // 0 means unconstrained
}

// NewRequest validates and builds a Request
func NewRequest(image []byte, credential string, expectedItems int) (Request, error) {
	if len(image) == 0 {
		return Request{}, fmt.Errorf("%w: no image provided", ErrInvalidRequest)
	}
	if expectedItems < 0 {
		return Request{}, fmt.Errorf("%w: expected items must not be negative", ErrInvalidRequest)
	}
	return Request{
		Image:         image,
		Credential:    credential,
		ExpectedItems: expectedItems,
	}, nil
}

// ImageHash returns the hex SHA-256 of the image content
func (r Request) ImageHash() string {
	sum := sha256.Sum256(r.Image)
	return hex.EncodeToString(sum[:])
}

// CacheKey identifies a submission by image content, credential and expected item count.
// The credential only enters the key through the hash.
func (r Request) CacheKey() string {
	imageSum := sha256.Sum256(r.Image)
	h := sha256.New()
	h.Write(imageSum[:])
	h.Write([]byte{0})
	h.Write([]byte(r.Credential))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(r.ExpectedItems)))
	return hex.EncodeToString(h.Sum(nil))
}

// Receipt is the normalized record extracted from one receipt image
type Receipt struct {
	Company   string              `json:"company"`
	Date      string              `json:"date"`
	Items     []LineItem          `json:"items"`
	Deduction decimal.NullDecimal `json:"deduction"` // null when the receipt shows none
	Total     decimal.Decimal     `json:"total"`
}

// LineItem is one purchased row. A numeric field that is present but not a number is kept
// as an invalid NullDecimal so aggregation can degrade instead of failing.
type LineItem struct {
	Description string              `json:"description"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	Total       decimal.NullDecimal `json:"total"`
	ProductType string              `json:"product_type"` // empty when the model sent a non-string value
}

// Summary is the per-receipt overview row
type Summary struct {
	Company  string              `json:"company"`
	Date     string              `json:"date"`
	Discount decimal.NullDecimal `json:"discount"` // sum of item totals minus Total; may be negative
	Total    decimal.Decimal     `json:"total"`
}

// CategoryTotal is the sum of item totals for one product type
type CategoryTotal struct {
	ProductType string          `json:"product_type"`
	Total       decimal.Decimal `json:"total"`
}

// Result is the full pipeline output for a submission. Results are shared by the cache
// and concurrent callers and must not be modified.
type Result struct {
	Receipt    *Receipt        `json:"receipt"`
	Summary    Summary         `json:"summary"`
	Categories []CategoryTotal `json:"categories"` // nil when category aggregation failed
	Warnings   []string        `json:"warnings,omitempty"`
}
