package document

import "os"

// transparentPixel is a 1x1 transparent PNG used when no logo file is
// found at any candidate path.
const transparentPixel = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// ResolveLogo loads the first readable candidate path and embeds it.
// Candidates are tried in order; a missing or unreadable logo degrades
// to the transparent placeholder, never to an error.
func ResolveLogo(candidates []string) EmbeddedImage {
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if res := Embed(data); res.Embedded() {
			return res.Image
		}
	}
	return EmbeddedImage{DataURI: transparentPixel, Width: 1, Height: 1}
}
