package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
)

// Embed policy constants. The hard cap excludes an asset entirely; the
// soft threshold forces a downscale before embedding.
const (
	MaxAssetBytes    = 2 << 20
	ResizeAssetBytes = 500 << 10
	MaxEmbedWidth    = 800
	MaxEmbedHeight   = 600
	EmbedJPEGQuality = 85
)

// SkipReason explains why an asset was left out of the document.
type SkipReason string

const (
	// SkipNone means the asset was embedded.
	SkipNone SkipReason = ""
	// SkipTooLarge means the asset exceeded the hard size cap.
	SkipTooLarge SkipReason = "too_large"
	// SkipUnsupported means the sniffed type is not an embeddable image.
	SkipUnsupported SkipReason = "unsupported"
	// SkipUnreadable means the bytes could not be decoded as an image.
	SkipUnreadable SkipReason = "unreadable"
)

// EmbeddedImage is an inlineable base64 image.
type EmbeddedImage struct {
	DataURI string
	Width   int
	Height  int
}

// EmbedResult reports the outcome of embedding one asset. Exactly one of
// Image and Skip is meaningful.
type EmbedResult struct {
	Image EmbeddedImage
	Skip  SkipReason
}

// Embedded reports whether the asset made it into the document.
func (r EmbedResult) Embedded() bool {
	return r.Skip == SkipNone
}

// Embed converts raw attachment bytes into a data URI under the embed
// policy. MIME type is sniffed from the file signature, never from the
// filename. Oversized, unsupported and corrupt assets degrade to a skip.
func Embed(data []byte) EmbedResult {
	if len(data) > MaxAssetBytes {
		return EmbedResult{Skip: SkipTooLarge}
	}
	mtype := mimetype.Detect(data)
	switch mtype.String() {
	case "image/jpeg", "image/png", "image/gif":
	default:
		return EmbedResult{Skip: SkipUnsupported}
	}

	if len(data) <= ResizeAssetBytes {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return EmbedResult{Skip: SkipUnreadable}
		}
		return EmbedResult{Image: EmbeddedImage{
			DataURI: dataURI(mtype.String(), data),
			Width:   cfg.Width,
			Height:  cfg.Height,
		}}
	}

	img, kind, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return EmbedResult{Skip: SkipUnreadable}
	}
	scaled := downscale(img)

	var buf bytes.Buffer
	outType := "image/jpeg"
	if kind == "png" {
		outType = "image/png"
		err = png.Encode(&buf, scaled)
	} else {
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: EmbedJPEGQuality})
	}
	if err != nil {
		return EmbedResult{Skip: SkipUnreadable}
	}

	bounds := scaled.Bounds()
	return EmbedResult{Image: EmbeddedImage{
		DataURI: dataURI(outType, buf.Bytes()),
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
	}}
}

// downscale fits img inside MaxEmbedWidth x MaxEmbedHeight preserving
// aspect ratio. Images already inside the bound are returned unchanged;
// nothing is ever upscaled.
func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= MaxEmbedWidth && h <= MaxEmbedHeight {
		return img
	}
	scale := math.Min(float64(MaxEmbedWidth)/float64(w), float64(MaxEmbedHeight)/float64(h))
	dw := int(math.Round(float64(w) * scale))
	dh := int(math.Round(float64(h) * scale))
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func dataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}
