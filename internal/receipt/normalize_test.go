package receipt

import (
	"encoding/json"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-extractor/internal/scanning"
)

// decode mirrors how the locator hands objects to Normalize
func decode(s string) map[string]any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var m map[string]any
	Expect(dec.Decode(&m)).To(Succeed())
	return m
}

var _ = Describe("Normalize", func() {
	var (
		input   string
		receipt *Receipt
		err     error
	)

	JustBeforeEach(func() {
		receipt, err = Normalize(decode(input))
	})

	When("every field is present", func() {
		BeforeEach(func() {
			input = `{"Company":"ACME","Date":"2024-01-01","Items":[{"Description":"Bread","Quantity":2,"UnitPrice":1.25,"Total":2.5,"ProductType":"food"}],"Deduction":0.5,"Total":2.0}`
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should keep the header fields", func() {
			Expect(receipt.Company).To(Equal("ACME"))
			Expect(receipt.Date).To(Equal("2024-01-01"))
			Expect(receipt.Total.String()).To(Equal("2"))
			Expect(receipt.Deduction.Valid).To(BeTrue())
			Expect(receipt.Deduction.Decimal.String()).To(Equal("0.5"))
		})

		It("should keep the item", func() {
			Expect(receipt.Items).To(HaveLen(1))
			item := receipt.Items[0]
			Expect(item.Description).To(Equal("Bread"))
			Expect(item.Quantity.Decimal.String()).To(Equal("2"))
			Expect(item.UnitPrice.Decimal.String()).To(Equal("1.25"))
			Expect(item.Total.Decimal.String()).To(Equal("2.5"))
			Expect(item.ProductType).To(Equal("food"))
		})
	})

	When("company and date are missing", func() {
		BeforeEach(func() {
			input = `{"Items":[],"Total":0}`
		})

		It("should default them to Unknown", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Company).To(Equal(UnknownText))
			Expect(receipt.Date).To(Equal(UnknownText))
		})

		It("should leave the deduction null", func() {
			Expect(receipt.Deduction.Valid).To(BeFalse())
		})
	})

	When("company is null", func() {
		BeforeEach(func() {
			input = `{"Company":null,"Items":[],"Total":0}`
		})

		It("should default it to Unknown", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Company).To(Equal(UnknownText))
		})
	})

	When("the total is missing", func() {
		BeforeEach(func() {
			input = `{"Company":"ACME","Items":[]}`
		})

		It("should return a missing field error", func() {
			Expect(errors.Is(err, ErrMissingRequiredField)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Total is missing"))
		})
	})

	When("the total is not numeric", func() {
		BeforeEach(func() {
			input = `{"Items":[],"Total":"lots"}`
		})

		It("should return a missing field error", func() {
			Expect(errors.Is(err, ErrMissingRequiredField)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Total is not numeric"))
		})
	})

	When("items are missing", func() {
		BeforeEach(func() {
			input = `{"Total":1}`
		})

		It("should return a missing field error", func() {
			var fieldErr *FieldError
			Expect(errors.As(err, &fieldErr)).To(BeTrue())
			Expect(fieldErr.Field).To(Equal("Items"))
		})
	})

	When("items is not a list", func() {
		BeforeEach(func() {
			input = `{"Items":{"Description":"Bread"},"Total":1}`
		})

		It("should return a missing field error", func() {
			Expect(errors.Is(err, ErrMissingRequiredField)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("not a list"))
		})
	})

	When("an item has no quantity", func() {
		BeforeEach(func() {
			input = `{"Items":[{"Description":"Bread","UnitPrice":1,"Total":1}],"Total":1}`
		})

		It("should name the item field", func() {
			var fieldErr *FieldError
			Expect(errors.As(err, &fieldErr)).To(BeTrue())
			Expect(fieldErr.Field).To(Equal("Items[0].Quantity"))
		})
	})

	When("an item is not an object", func() {
		BeforeEach(func() {
			input = `{"Items":["Bread"],"Total":1}`
		})

		It("should return a missing field error", func() {
			Expect(errors.Is(err, ErrMissingRequiredField)).To(BeTrue())
		})
	})

	When("an item numeric is present but not a number", func() {
		BeforeEach(func() {
			input = `{"Items":[{"Description":"Bread","Quantity":"one","UnitPrice":1,"Total":1}],"Total":1}`
		})

		It("should keep the item with the value marked invalid", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Items[0].Quantity.Valid).To(BeFalse())
			Expect(receipt.Items[0].Total.Valid).To(BeTrue())
		})
	})

	When("keys use different spellings", func() {
		BeforeEach(func() {
			input = `{"company":"ACME","DATE":"2024-01-01","items":[{"item":"Milk","qty":"1","Unit Price":"$1,299.50","amount":"1,299.50","category":"Clothes"}],"Discount":"0","grand_total":"1299.50"}`
		})

		It("should match them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Company).To(Equal("ACME"))
			Expect(receipt.Date).To(Equal("2024-01-01"))
			item := receipt.Items[0]
			Expect(item.Description).To(Equal("Milk"))
			Expect(item.Quantity.Decimal.String()).To(Equal("1"))
			Expect(item.UnitPrice.Decimal.String()).To(Equal("1299.5"))
			Expect(item.Total.Decimal.String()).To(Equal("1299.5"))
			Expect(item.ProductType).To(Equal("clothing"))
			Expect(receipt.Deduction.Valid).To(BeTrue())
		})
	})

	When("numeric strings carry three decimals", func() {
		BeforeEach(func() {
			input = `{"Items":[{"Description":"Cheese","Quantity":"0.500","UnitPrice":"5.00","Total":"1.250"}],"Total":"2.50"}`
		})

		It("should read the dot as a decimal point", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Items[0].Quantity.Decimal.String()).To(Equal("0.5"))
			Expect(receipt.Items[0].Total.Decimal.String()).To(Equal("1.25"))
		})

		It("should keep the discount consistent with the item totals", func() {
			agg := Aggregate(receipt)
			Expect(agg.DiscountErr).NotTo(HaveOccurred())
			Expect(agg.Summary.Discount.Decimal.String()).To(Equal("-1.25"))
		})
	})

	When("the deduction is not numeric", func() {
		BeforeEach(func() {
			input = `{"Items":[],"Deduction":"none","Total":1}`
		})

		It("should treat it as absent", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(receipt.Deduction.Valid).To(BeFalse())
		})
	})

	DescribeTable("product types",
		func(value string, expected string) {
			r, err := Normalize(decode(`{"Items":[{"Quantity":1,"UnitPrice":1,"Total":1` + value + `}],"Total":1}`))
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Items[0].ProductType).To(Equal(expected))
		},
		Entry("canonical", `,"ProductType":"medicine"`, "medicine"),
		Entry("different case", `,"ProductType":"Petrol"`, "petrol"),
		Entry("alias", `,"ProductType":"alcohol"`, "alcoholic drink"),
		Entry("prompt wording", `,"ProductType":"clothing/cloth"`, "clothing"),
		Entry("absent", ``, scanning.UnknownProductType),
		Entry("empty", `,"ProductType":"  "`, scanning.UnknownProductType),
		Entry("unrecognised", `,"ProductType":"toys"`, "toys"),
		Entry("not text", `,"ProductType":["food"]`, ""),
	)
})

var _ = Describe("normalizeNumericString", func() {
	DescribeTable("separators and currency marks",
		func(in string, expected string) {
			Expect(normalizeNumericString(in)).To(Equal(expected))
		},
		Entry("plain", "12.50", "12.50"),
		Entry("dollar sign", "$12.50", "12.50"),
		Entry("thousands comma", "1,234.56", "1234.56"),
		Entry("three decimals below one", "0.500", "0.500"),
		Entry("three decimals", "1.250", "1.250"),
		Entry("decimal comma", "12,5", "12.5"),
		Entry("non-breaking space", "1\u00a0234", "1234"),
		Entry("negative", "-3.10", "-3.10"),
	)
})
