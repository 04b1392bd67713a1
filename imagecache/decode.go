package imagecache

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"

	_ "golang.org/x/image/bmp"

	"github.com/spaghettifunk/basalt/core"
	"github.com/spaghettifunk/basalt/imagekey"
)

// LoadEncoded decodes bytes in a supported encoded format (PNG, JPEG, or
// bitmap) and stores the result under key, per spec.md §4.B. JPEG source
// data decodes to the sRGB variant of its format; every other supported
// format decodes to the linear variant — matching how the formats'
// color values are conventionally authored.
func (c *Cache) LoadEncoded(key imagekey.ImageKey, lifetime ImageCacheLifetime, associatedData any, encoded []byte) (Info, error) {
	img, formatName, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return Info{}, core.NewCacheError(core.KindDecodeError, err)
	}

	format, data, err := fromImage(img)
	if err != nil {
		return Info{}, core.NewCacheError(core.KindDecodeError, err)
	}

	if formatName == "jpeg" {
		format = format.toSRGB()
	}

	bounds := img.Bounds()
	width := uint32(bounds.Dx())
	height := uint32(bounds.Dy())

	return c.LoadRaw(key, lifetime, format, width, height, associatedData, data)
}

// fromImage converts a decoded image.Image into the cache's raw Format
// + Data representation. Paletted and exotic color models are
// normalized to 8-bit RGBA; NRGBA64/RGBA64 stay at 16-bit depth.
func fromImage(img image.Image) (Format, Data, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	switch src := img.(type) {
	case *image.Gray:
		return LMono, Data{Depth: Depth8, D8: append([]byte(nil), src.Pix...)}, nil
	case *image.Gray16:
		return LMono, Data{Depth: Depth16, D16: bytesToUint16(src.Pix)}, nil
	case *image.RGBA:
		return LRGBA, Data{Depth: Depth8, D8: stripStride(src.Pix, src.Stride, width, height, 4)}, nil
	case *image.NRGBA:
		return LRGBA, Data{Depth: Depth8, D8: stripStride(src.Pix, src.Stride, width, height, 4)}, nil
	case *image.RGBA64:
		return LRGBA, Data{Depth: Depth16, D16: bytesToUint16(stripStride(src.Pix, src.Stride, width, height, 8))}, nil
	case *image.NRGBA64:
		return LRGBA, Data{Depth: Depth16, D16: bytesToUint16(stripStride(src.Pix, src.Stride, width, height, 8))}, nil
	default:
		// Fallback: re-sample through the standard RGBA model for any
		// color model the fast paths above don't special-case
		// (paletted GIFs, CMYK JPEGs, etc).
		rgba := image.NewRGBA(bounds)
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				rgba.Set(x, y, img.At(x, y))
			}
		}
		return LRGBA, Data{Depth: Depth8, D8: append([]byte(nil), rgba.Pix...)}, nil
	}
}

// stripStride repacks a pixel buffer with a row stride that may exceed
// width*bytesPerPixel (e.g. when bounds.Min != (0,0)) into a tightly
// packed buffer.
func stripStride(pix []byte, stride, width, height, bytesPerPixel int) []byte {
	rowLen := width * bytesPerPixel
	if stride == rowLen {
		return append([]byte(nil), pix...)
	}
	out := make([]byte, 0, rowLen*height)
	for y := 0; y < height; y++ {
		row := pix[y*stride : y*stride+rowLen]
		out = append(out, row...)
	}
	return out
}

func bytesToUint16(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = uint16(b[i*2])<<8 | uint16(b[i*2+1])
	}
	return out
}

// LoadFromURL downloads bytes from url and decodes them via LoadEncoded.
func (c *Cache) LoadFromURL(lifetime ImageCacheLifetime, associatedData any, rawURL string) (Info, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Info{}, core.NewCacheError(core.KindUnsupportedScheme, fmt.Errorf("invalid url: %w", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Info{}, core.NewCacheError(core.KindUnsupportedScheme, fmt.Errorf("unsupported scheme %q", parsed.Scheme))
	}

	resp, err := http.Get(parsed.String())
	if err != nil {
		return Info{}, core.NewCacheError(core.KindHttpError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Info{}, core.NewCacheError(core.KindHttpError, fmt.Errorf("http status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Info{}, core.NewCacheError(core.KindHttpError, err)
	}

	return c.LoadEncoded(imagekey.FromURL(rawURL), lifetime, associatedData, body)
}

// LoadFromPath reads and decodes an image file from the local
// filesystem via LoadEncoded.
func (c *Cache) LoadFromPath(lifetime ImageCacheLifetime, associatedData any, path string) (Info, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Info{}, core.NewCacheError(core.KindIoError, err)
	}

	return c.LoadEncoded(imagekey.FromPath(path), lifetime, associatedData, body)
}

// LoadFromKey attempts to load an image directly from an ImageKey,
// dispatching to LoadFromURL or LoadFromPath depending on the key's
// kind. Glyph and user keys are rejected — the cache has no source to
// fetch their bytes from (spec.md §4.B: "currently only works for urls
// and paths").
func (c *Cache) LoadFromKey(lifetime ImageCacheLifetime, associatedData any, key imagekey.ImageKey) (Info, error) {
	if !key.IsImageCache() {
		return Info{}, core.NewCacheError(core.KindUnsupportedScheme, fmt.Errorf("key is not suitable for ImageCache"))
	}

	if urlStr, ok := key.URL(); ok {
		return c.LoadFromURL(lifetime, associatedData, urlStr)
	}
	if path, ok := key.Path(); ok {
		return c.LoadFromPath(lifetime, associatedData, path)
	}
	if key.IsGlyph() {
		return Info{}, core.NewCacheError(core.KindUnsupportedScheme, fmt.Errorf("load_from_key does not support glyphs"))
	}
	return Info{}, core.NewCacheError(core.KindUnsupportedScheme, fmt.Errorf("load_from_key does not support user keys"))
}
