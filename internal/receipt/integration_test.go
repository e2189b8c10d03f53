package receipt

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-extractor/internal/scanning"
)

func receiptPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 20, 40))
	for x := 0; x < 20; x++ {
		for y := 0; y < 40; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Integration", func() {
	var (
		groqServer *ghttp.Server
		apiServer  *ghttp.Server
		cache      *BoltCache
		photo      []byte
	)

	completion := func(content string) http.HandlerFunc {
		return ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/openai/v1/chat/completions"),
			ghttp.VerifyHeaderKV("Authorization", "Bearer gsk_integration"),
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"role": "assistant", "content": content}},
				},
			}),
		)
	}

	BeforeEach(func() {
		groqServer = ghttp.NewServer()
		scanner, err := scanning.NewGroq(groqServer.URL()+"/openai/v1", "test-model")
		Expect(err).NotTo(HaveOccurred())

		cache, err = NewBoltCache(filepath.Join(GinkgoT().TempDir(), "cache.db"), time.Hour)
		Expect(err).NotTo(HaveOccurred())

		server := NewServer(NewServiceWithDeps(scanner, cache, "gsk_"), BasicAuth{})
		apiServer = ghttp.NewServer()
		apiServer.AppendHandlers(server.ServeHTTP, server.ServeHTTP)

		photo = receiptPNG()
	})

	AfterEach(func() {
		apiServer.Close()
		groqServer.Close()
		cache.Close()
	})

	send := func(path string, fields map[string]string) *http.Response {
		body, contentType := uploadForm(photo, fields)
		req, err := http.NewRequest("POST", apiServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", contentType)
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("should extract a receipt and serve the export from the cache", func() {
		groqServer.AppendHandlers(completion("```json\n" +
			`{"Company":"ACME","Date":"2024-01-01","Items":[` +
			`{"Description":"Bread","Quantity":1,"UnitPrice":2.5,"Total":2.5,"ProductType":"food"},` +
			`{"Description":"Beer","Quantity":2,"UnitPrice":1.5,"Total":3,"ProductType":"alcoholic drink"}],"Total":5}` +
			"\n```"))

		fields := map[string]string{"api_key": "gsk_integration", "expected_items": "2"}

		resp := send("/api/extract", fields)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		body := decodeBody(resp)
		Expect(body["summary"]).To(HaveKeyWithValue("discount", "0.5"))
		Expect(body["categories"]).To(HaveLen(2))
		Expect(body).NotTo(HaveKey("warnings"))

		fields["table"] = "summary"
		resp = send("/api/export", fields)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(Equal(xlsxContentType))
		resp.Body.Close()

		Expect(groqServer.ReceivedRequests()).To(HaveLen(1))
	})

	It("should report a rejected key and not cache it", func() {
		groqServer.AppendHandlers(
			ghttp.RespondWith(http.StatusUnauthorized, `{"error":{"message":"Invalid API Key"}}`),
			completion(`{"Items":[],"Total":0}`),
		)

		fields := map[string]string{"api_key": "gsk_integration"}
		resp := send("/api/extract", fields)
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		resp.Body.Close()

		resp = send("/api/extract", fields)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		resp.Body.Close()

		Expect(groqServer.ReceivedRequests()).To(HaveLen(2))
	})
})
