// Package qr extracts QR payloads from raw image bytes. Real-world phishing
// QR images are frequently inverted, rotated, or embedded in low-contrast
// screenshots, so decoding walks a matrix of geometric and contrast
// transforms until one combination yields a QR-family result.
package qr

import (
	"bytes"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	_ "golang.org/x/image/webp"
)

// Scannable reports whether an attachment is worth fetching for a QR scan:
// image content, within the byte ceiling, and not an excluded format.
func Scannable(contentType string, size, maxBytes int64, excludeGIF bool) bool {
	ct := strings.ToLower(contentType)
	if !strings.HasPrefix(ct, "image/") {
		return false
	}
	if excludeGIF && ct == "image/gif" {
		return false
	}
	if ct == "image/heic" || ct == "image/heif" {
		return false
	}
	if maxBytes > 0 && size > maxBytes {
		return false
	}
	return true
}

// Decode returns all QR payloads found in the image, deduplicated. Transform
// variants (contrast-stretched, inverted, upscaled, and a fixed-threshold
// pre-binarized one) are each tried at four rotations; the walk stops at the
// first combination that yields any payload. Corrupt input yields an empty
// result, never an error.
func Decode(data []byte) []string {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		qrDecodeCount.WithLabelValues("error").Inc()
		return nil
	}

	for _, v := range variants(img) {
		for _, rot := range rotations(v) {
			if texts := decodeOne(rot); len(texts) > 0 {
				qrDecodeCount.WithLabelValues("hit").Inc()
				return texts
			}
		}
	}
	qrDecodeCount.WithLabelValues("miss").Inc()
	return nil
}

// decodeOne tries the default adaptive-local binarizer first and falls back
// to a global-histogram one, which handles uniformly dim or washed-out
// screenshots that defeat local thresholding.
func decodeOne(img image.Image) []string {
	if bmp, err := gozxing.NewBinaryBitmapFromImage(img); err == nil {
		if texts := decodeBitmap(bmp); len(texts) > 0 {
			return texts
		}
	}
	src := gozxing.NewLuminanceSourceFromImage(img)
	if bmp, err := gozxing.NewBinaryBitmap(gozxing.NewGlobalHistgramBinarizer(src)); err == nil {
		if texts := decodeBitmap(bmp); len(texts) > 0 {
			return texts
		}
	}
	return nil
}

func decodeBitmap(bmp *gozxing.BinaryBitmap) []string {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil || result == nil {
		return nil
	}
	if result.GetBarcodeFormat() != gozxing.BarcodeFormat_QR_CODE {
		return nil
	}
	if txt := result.GetText(); txt != "" {
		return []string{txt}
	}
	return nil
}

// Obfuscate defangs a decoded payload for safe display in notifications.
func Obfuscate(text string) string {
	text = strings.ReplaceAll(text, "http", "hxxp")
	return strings.ReplaceAll(text, ".", "[.]")
}
