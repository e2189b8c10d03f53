package scanning

import (
	"errors"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ = Describe("errors", func() {
	Describe("APIError", func() {
		It("unwraps to its cause", func() {
			cause := errors.New("connection refused")
			err := &APIError{Provider: "groq", Err: cause}
			Expect(err).To(MatchError(cause))
			Expect(err).To(MatchError(ErrService))
		})

		It("includes the status code in the message", func() {
			err := newStatusError("groq", http.StatusBadGateway, "upstream")
			Expect(err.Error()).To(Equal("groq API error (status 502): upstream"))
		})
	})

	Describe("classifyGeminiError", func() {
		It("treats a rejected key as an authentication failure", func() {
			err := classifyGeminiError(&googleapi.Error{Code: http.StatusForbidden, Message: "denied"})
			Expect(err).To(MatchError(ErrAuthentication))
			Expect(err.StatusCode).To(Equal(http.StatusForbidden))
		})

		It("treats an unauthenticated gRPC status as an authentication failure", func() {
			err := classifyGeminiError(status.Error(codes.Unauthenticated, "no key"))
			Expect(err).To(MatchError(ErrAuthentication))
		})

		It("recognises the invalid key message", func() {
			err := classifyGeminiError(status.Error(codes.InvalidArgument, "API key not valid. Please pass a valid API key."))
			Expect(err).To(MatchError(ErrAuthentication))
		})

		It("treats anything else as a service error", func() {
			err := classifyGeminiError(status.Error(codes.Unavailable, "overloaded"))
			Expect(err).To(MatchError(ErrService))
			Expect(err).NotTo(MatchError(ErrAuthentication))
		})
	})
})
