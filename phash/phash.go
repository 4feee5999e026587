// Package phash computes perceptual hashes of images and matches them against
// a reference set of known-bad hashes by Hamming distance.
package phash

import (
	"bytes"
	"fmt"
	"image"
	"math/bits"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Size is the hash length in bits.
const Size = 64

const canonicalEdge = 256

// HashImage resizes the image to the canonical square and returns its 64-bit
// perception hash. Hashing the same image always yields the same value; the
// resize makes hashes comparable across source resolutions.
func HashImage(img image.Image) (uint64, error) {
	canon := image.NewRGBA(image.Rect(0, 0, canonicalEdge, canonicalEdge))
	draw.ApproxBiLinear.Scale(canon, canon.Bounds(), img, img.Bounds(), draw.Src, nil)
	h, err := goimagehash.PerceptionHash(canon)
	if err != nil {
		return 0, fmt.Errorf("computing perception hash: %w", err)
	}
	return h.GetHash(), nil
}

// HashBytes decodes raw image bytes and hashes the result.
func HashBytes(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decoding image: %w", err)
	}
	return HashImage(img)
}

// Distance is the Hamming distance between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
