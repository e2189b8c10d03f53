package scanning

import (
	"fmt"
	"strings"
)

// ProductTypes is the closed set of categories the model may assign to a line item
var ProductTypes = []string{
	"food",
	"alcoholic drink",
	"petrol",
	"drugstore product",
	"clothing",
	"electric device",
	"medicine",
	"other",
}

// productTypeLabels is how a category is worded in the prompt when it differs from its canonical name
var productTypeLabels = map[string]string{
	"clothing": "clothing/cloth",
}

// UnknownProductType is used when a line item cannot be classified
const UnknownProductType = "unknown"

const receiptExtractPrompt = `Extract the following receipt details from the provided image and return them as a structured JSON object.

Fields to extract:
- Company: the store or business name
- Date: the transaction date as printed on the receipt
- Items: every purchased line, each with Description, Quantity, UnitPrice, Total and ProductType
- Deduction: any discount or deduction printed on the receipt (null if none)
- Total: the final amount paid
- ProductType (per item): one of %s; use "other" if the item fits none of them and "%s" if it cannot be identified

Return ONLY valid JSON in this exact format:
{
  "Company": "Store Name",
  "Date": "2024-01-31",
  "Items": [
    {"Description": "Item", "Quantity": 1, "UnitPrice": 0.00, "Total": 0.00, "ProductType": "food"}
  ],
  "Deduction": null,
  "Total": 0.00
}

Important:
- All amounts and quantities must be numbers, not strings
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

const expectedItemsConstraint = `

IMPORTANT: There are exactly %d items in the receipt.
Do not infer or hallucinate additional items.
Return exactly %d items in the "Items" field of the JSON.`

// BuildPrompt returns the instruction sent with every receipt image.
// A positive expectedItems adds a hard constraint on the number of returned items.
func BuildPrompt(expectedItems int) string {
	quoted := make([]string, len(ProductTypes))
	for i, t := range ProductTypes {
		if label, ok := productTypeLabels[t]; ok {
			t = label
		}
		quoted[i] = fmt.Sprintf("%q", t)
	}

	var b strings.Builder
	fmt.Fprintf(&b, receiptExtractPrompt, strings.Join(quoted, ", "), UnknownProductType)
	if expectedItems > 0 {
		fmt.Fprintf(&b, expectedItemsConstraint, expectedItems, expectedItems)
	}
	return b.String()
}
