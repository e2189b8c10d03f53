package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// maxImageDimension bounds the longest side of an image sent to a provider
const maxImageDimension = 2048

// pdfToImage renders the first page of a PDF (most receipts are single page)
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes any supported upload into an image
func decodeImage(imageData []byte, mimeType string) (image.Image, error) {
	switch {
	case mimeType == "application/pdf":
		return pdfToImage(imageData)
	case isHEICMimeType(mimeType):
		img, err := heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	default:
		img, _, err := image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
		return img, nil
	}
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData sniffs the upload and returns bytes a vision model accepts together with their MIME type.
// JPEG and PNG within the size bound are sent untouched; everything else is decoded and re-encoded.
func prepareImageData(imageData []byte) ([]byte, string, error) {
	if len(imageData) == 0 {
		return nil, "", fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}

	mimeType := mimetype.Detect(imageData).String()
	if idx := strings.IndexByte(mimeType, ';'); idx != -1 {
		mimeType = mimeType[:idx]
	}
	passthrough := mimeType == "image/jpeg" || mimeType == "image/png"

	if passthrough {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		if cfg.Width <= maxImageDimension && cfg.Height <= maxImageDimension {
			return imageData, mimeType, nil
		}
	}

	img, err := decodeImage(imageData, mimeType)
	if err != nil {
		return nil, "", fmt.Errorf("%w: unsupported image format %s. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF: %v", ErrInvalidImage, mimeType, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxImageDimension || bounds.Dy() > maxImageDimension {
		img = imaging.Fit(img, maxImageDimension, maxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if mimeType == "image/jpeg" {
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
			return nil, "", fmt.Errorf("encoding JPEG: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	}
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}
