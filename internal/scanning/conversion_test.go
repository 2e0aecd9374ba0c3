package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func testPNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, testImage())).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("prepareImageData", func() {
	var (
		input       []byte
		contentType string
		output      []byte
		err         error
	)

	JustBeforeEach(func() {
		output, err = prepareImageData(input, contentType)
	})

	When("the upload is already PNG", func() {
		BeforeEach(func() {
			input = testPNG()
			contentType = "image/png"
		})

		It("passes it through", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(output).To(Equal(input))
		})
	})

	When("the upload is JPEG", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())
			input = buf.Bytes()
			contentType = "image/jpeg; charset=binary"
		})

		It("converts it to PNG", func() {
			Expect(err).NotTo(HaveOccurred())
			_, format, decodeErr := image.Decode(bytes.NewReader(output))
			Expect(decodeErr).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the content type is missing", func() {
		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())
			input = buf.Bytes()
			contentType = ""
		})

		It("decodes it as an image", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(output).NotTo(BeEmpty())
		})
	})

	When("the data is not an image", func() {
		BeforeEach(func() {
			input = []byte("definitely not an image")
			contentType = "image/jpeg"
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})

	When("the data is empty", func() {
		BeforeEach(func() {
			input = nil
			contentType = "image/png"
		})

		It("returns an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("HEIC detection", func() {
	It("recognizes the ftyp brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEICFormat(data)).To(BeTrue())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})

	It("recognizes the mime type", func() {
		Expect(isHEICMimeType(" Image/HEIC ")).To(BeTrue())
		Expect(isHEICMimeType("image/heif-sequence")).To(BeTrue())
		Expect(isHEICMimeType("image/jpeg")).To(BeFalse())
	})
})
