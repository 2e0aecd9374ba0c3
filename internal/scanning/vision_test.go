package scanning

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

var _ = Describe("Vision", func() {
	var (
		server     *ghttp.Server
		recognizer *Vision
		text       string
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		recognizer, err = NewVision(context.Background(),
			option.WithEndpoint(server.URL()+"/"),
			option.WithoutAuthentication(),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = recognizer.RecognizeText(context.Background(), testPNG(), "image/png")
	})

	respond := func(resp *vision.BatchAnnotateImagesResponse) {
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/v1/images:annotate"),
			func(w http.ResponseWriter, r *http.Request) {
				var req vision.BatchAnnotateImagesRequest
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				Expect(req.Requests).To(HaveLen(1))
				Expect(req.Requests[0].Image.Content).NotTo(BeEmpty())
				Expect(req.Requests[0].Features).To(HaveLen(1))
				Expect(req.Requests[0].Features[0].Type).To(Equal("DOCUMENT_TEXT_DETECTION"))
				Expect(req.Requests[0].Features[0].MaxResults).To(BeEquivalentTo(1))
			},
			ghttp.RespondWithJSONEncoded(http.StatusOK, resp),
		))
	}

	When("text annotations are returned", func() {
		BeforeEach(func() {
			respond(&vision.BatchAnnotateImagesResponse{
				Responses: []*vision.AnnotateImageResponse{{
					TextAnnotations: []*vision.EntityAnnotation{
						{Description: "MCDONALDS\nTotal: $2.50\n"},
						{Description: "MCDONALDS"},
					},
				}},
			})
		})

		It("returns the first annotation", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("MCDONALDS\nTotal: $2.50"))
		})
	})

	When("only the full text annotation is present", func() {
		BeforeEach(func() {
			respond(&vision.BatchAnnotateImagesResponse{
				Responses: []*vision.AnnotateImageResponse{{
					FullTextAnnotation: &vision.TextAnnotation{Text: "Shell\nFuel  45.00"},
				}},
			})
		})

		It("falls back to it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Shell\nFuel  45.00"))
		})
	})

	When("no text is found", func() {
		BeforeEach(func() {
			respond(&vision.BatchAnnotateImagesResponse{
				Responses: []*vision.AnnotateImageResponse{{}},
			})
		})

		It("returns ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the image is rejected", func() {
		BeforeEach(func() {
			respond(&vision.BatchAnnotateImagesResponse{
				Responses: []*vision.AnnotateImageResponse{{
					Error: &vision.Status{Code: 3, Message: "Bad image data."},
				}},
			})
		})

		It("returns the API error", func() {
			Expect(err).To(MatchError(ContainSubstring("Bad image data.")))
		})
	})
})

var _ = Describe("VisionOptions", func() {
	It("requires a key or credentials", func() {
		_, err := VisionOptions("", "")
		Expect(err).To(HaveOccurred())
	})

	It("accepts an API key", func() {
		opts, err := VisionOptions("key", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(opts).To(HaveLen(1))
	})
})
