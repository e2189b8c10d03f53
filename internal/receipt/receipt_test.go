package receipt

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-extractor/internal/scanning"
)

var _ = Describe("Request", func() {
	Describe("NewRequest", func() {
		It("should reject an empty image", func() {
			_, err := NewRequest(nil, "gsk_test", 0)
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
		})

		It("should reject a negative item count", func() {
			_, err := NewRequest([]byte("img"), "gsk_test", -1)
			Expect(errors.Is(err, ErrInvalidRequest)).To(BeTrue())
		})

		It("should accept an unconstrained count", func() {
			req, err := NewRequest([]byte("img"), "gsk_test", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.ExpectedItems).To(BeZero())
		})
	})

	Describe("CacheKey", func() {
		var base Request

		BeforeEach(func() {
			base = Request{Image: []byte("img"), Credential: "gsk_test", ExpectedItems: 2}
		})

		It("should depend on content, not identity", func() {
			same := Request{Image: append([]byte(nil), base.Image...), Credential: "gsk_test", ExpectedItems: 2}
			Expect(same.CacheKey()).To(Equal(base.CacheKey()))
		})

		It("should change with each input", func() {
			otherImage := base
			otherImage.Image = []byte("img2")
			otherCred := base
			otherCred.Credential = "gsk_other"
			otherCount := base
			otherCount.ExpectedItems = 3

			Expect(otherImage.CacheKey()).NotTo(Equal(base.CacheKey()))
			Expect(otherCred.CacheKey()).NotTo(Equal(base.CacheKey()))
			Expect(otherCount.CacheKey()).NotTo(Equal(base.CacheKey()))
		})

		It("should not contain the credential", func() {
			Expect(base.CacheKey()).NotTo(ContainSubstring("gsk_test"))
			Expect(base.CacheKey()).To(HaveLen(64))
		})
	})
})

var _ = Describe("UserMessage", func() {
	DescribeTable("failure kinds",
		func(err error, expected string) {
			Expect(UserMessage(err)).To(ContainSubstring(expected))
		},
		Entry("authentication", &scanning.APIError{Provider: "groq", StatusCode: 401, Auth: true}, "enter a new one"),
		Entry("service", &scanning.APIError{Provider: "groq", StatusCode: 500}, "try again later"),
		Entry("no JSON", &scanning.ParseError{Kind: scanning.ErrNoJSONFound}, "No JSON data"),
		Entry("malformed JSON", &scanning.ParseError{Kind: scanning.ErrMalformedJSON}, "invalid JSON"),
		Entry("missing field", fmt.Errorf("normalizing: %w", &FieldError{Field: "Total", Reason: "is missing"}), "Total is missing"),
		Entry("invalid image", fmt.Errorf("%w: %w", ErrInvalidRequest, scanning.ErrInvalidImage), "could not be read as an image"),
		Entry("unexpected", errors.New("boom"), "unexpected error"),
	)

	It("should be empty without an error", func() {
		Expect(UserMessage(nil)).To(BeEmpty())
	})
})
