// Package imagekey implements the tagged, pre-hashed image identifier
// (spec.md §4.A) and the open-addressed containers keyed by it.
//
// The source implementation (original_source/src/image_cache/image_key.rs)
// uses a type-erased Arc<dyn Any> payload with a runtime TypeId tag. Go has
// no dynamic-dispatch sum type of that shape, so ImageKey is instead a
// small tagged struct: a `kind` discriminant plus an `any` payload,
// unwrapped through typed accessors that pattern-match on `kind`. The hash
// is computed once at construction and never recomputed — equality and
// hashing both stay O(1) regardless of payload size, which is the whole
// point: these are hot-path lookup keys during vertex building and image
// diffing.
package imagekey

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

type kind uint8

const (
	kindNone kind = iota
	kindURL
	kindPath
	kindGlyph
	kindUser
	kindVulkan
)

// GlyphCacheKey is the externally-provided identifier for a rasterized
// glyph (spec.md glossary). The text shaper that produces these is out
// of scope for this module; we only need it to be hashable.
type GlyphCacheKey struct {
	FontID    uint64
	GlyphID   uint32
	SizeBits  uint32 // fixed-point font size, for cache-key stability
	SubpixelX uint8
	SubpixelY uint8
}

func (k GlyphCacheKey) bytes() []byte {
	buf := make([]byte, 8+4+4+1+1)
	binary.LittleEndian.PutUint64(buf[0:8], k.FontID)
	binary.LittleEndian.PutUint32(buf[8:12], k.GlyphID)
	binary.LittleEndian.PutUint32(buf[12:16], k.SizeBits)
	buf[16] = k.SubpixelX
	buf[17] = k.SubpixelY
	return buf
}

// ImageKey is a cheap-to-clone, cheap-to-compare identifier for any
// image source: a URL, a filesystem path, a rasterized glyph, a
// caller-defined user key, or a Vulkan-supplied image id.
type ImageKey struct {
	h       uint64
	kind    kind
	payload any // string (url/path), GlyphCacheKey, userKey, uint64 (vulkan id)
}

// userKey wraps a user-supplied hashable value together with a type tag
// so that two different user key types never compare equal even if their
// underlying hash bytes collide (mirrors the Rust TypeId tag in KeyKind::
// ImageCacheUser).
type userKey struct {
	typeTag string
	value   any
}

// Hashable is implemented by user key types so they can contribute
// deterministic bytes to the key's hash.
type Hashable interface {
	HashBytes() []byte
}

// None is the zero-value "no image" key.
var None = ImageKey{kind: kindNone}

func hashOf(k kind, payload []byte) uint64 {
	d := xxhash.New()
	d.Write([]byte{byte(k)})
	d.Write(payload)
	return d.Sum64()
}

// FromURL builds an ImageKey for a remote image resource.
func FromURL(url string) ImageKey {
	return ImageKey{
		h:       hashOf(kindURL, []byte(url)),
		kind:    kindURL,
		payload: url,
	}
}

// FromPath builds an ImageKey for a filesystem-resident image.
func FromPath(path string) ImageKey {
	return ImageKey{
		h:       hashOf(kindPath, []byte(path)),
		kind:    kindPath,
		payload: path,
	}
}

// FromGlyph builds an ImageKey for a rasterized glyph.
func FromGlyph(g GlyphCacheKey) ImageKey {
	return ImageKey{
		h:       hashOf(kindGlyph, g.bytes()),
		kind:    kindGlyph,
		payload: g,
	}
}

// FromUser builds an ImageKey from a caller-defined key type. typeTag
// must uniquely identify the Go type T across the process (a package-
// qualified type name is the conventional choice) since Go has no
// built-in TypeId equivalent usable as a map key without reflection.
func FromUser(typeTag string, key Hashable) ImageKey {
	buf := append([]byte(typeTag), key.HashBytes()...)

	return ImageKey{
		h:    hashOf(kindUser, buf),
		kind: kindUser,
		payload: userKey{
			typeTag: typeTag,
			value:   key,
		},
	}
}

// FromVulkanID builds an ImageKey wrapping a caller-supplied (user-owned)
// Vulkan image id; the backing manager treats these as User backings
// that it never allocates or frees itself (spec.md §3 ImageBacking.User).
func FromVulkanID(id uint64) ImageKey {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, id)

	return ImageKey{
		h:       hashOf(kindVulkan, buf),
		kind:    kindVulkan,
		payload: id,
	}
}

// Hash returns the key's precomputed 64-bit hash. Stable for the life of
// the key (property 1 in spec.md §8): clone, store, or pass this value
// around freely without ever re-deriving the hash.
func (k ImageKey) Hash() uint64 { return k.h }

// Equal implements the (tag, hash)-based equality spec.md §3 requires.
// Two distinct payloads that collide on hash would incorrectly compare
// equal under this alone, which is why IndexedMap/IndexedSet additionally
// confirm full payload equality on a hash match (see map.go).
func (k ImageKey) Equal(o ImageKey) bool {
	return k.kind == o.kind && k.h == o.h
}

// payloadEqual does the heavier, definitive comparison used to break
// hash collisions inside IndexedMap/IndexedSet.
func (k ImageKey) payloadEqual(o ImageKey) bool {
	if k.kind != o.kind {
		return false
	}

	switch k.kind {
	case kindNone:
		return true
	case kindURL, kindPath:
		return k.payload.(string) == o.payload.(string)
	case kindGlyph:
		return k.payload.(GlyphCacheKey) == o.payload.(GlyphCacheKey)
	case kindVulkan:
		return k.payload.(uint64) == o.payload.(uint64)
	case kindUser:
		a, b := k.payload.(userKey), o.payload.(userKey)
		if a.typeTag != b.typeTag {
			return false
		}
		if ha, ok := a.value.(Hashable); ok {
			if hb, ok := b.value.(Hashable); ok {
				return string(ha.HashBytes()) == string(hb.HashBytes())
			}
		}
		return false
	default:
		return false
	}
}

func (k ImageKey) IsNone() bool   { return k.kind == kindNone }
func (k ImageKey) IsURL() bool    { return k.kind == kindURL }
func (k ImageKey) IsPath() bool   { return k.kind == kindPath }
func (k ImageKey) IsGlyph() bool  { return k.kind == kindGlyph }
func (k ImageKey) IsUser() bool   { return k.kind == kindUser }
func (k ImageKey) IsVulkan() bool { return k.kind == kindVulkan }

// IsImageCache reports whether this key names a source the ImageCache
// owns (url/path/glyph/user) as opposed to a caller-managed Vulkan image.
// Mirrors the Rust is_image_cache() used by load_from_key.
func (k ImageKey) IsImageCache() bool {
	switch k.kind {
	case kindURL, kindPath, kindGlyph, kindUser:
		return true
	default:
		return false
	}
}

func (k ImageKey) URL() (string, bool) {
	if k.kind != kindURL {
		return "", false
	}
	return k.payload.(string), true
}

func (k ImageKey) Path() (string, bool) {
	if k.kind != kindPath {
		return "", false
	}
	return k.payload.(string), true
}

func (k ImageKey) Glyph() (GlyphCacheKey, bool) {
	if k.kind != kindGlyph {
		return GlyphCacheKey{}, false
	}
	return k.payload.(GlyphCacheKey), true
}

// User returns the caller's key value (whatever concrete type was passed
// to FromUser) if this key was built with the given typeTag.
func (k ImageKey) User(typeTag string) (any, bool) {
	if k.kind != kindUser {
		return nil, false
	}
	uk := k.payload.(userKey)
	if uk.typeTag != typeTag {
		return nil, false
	}
	return uk.value, true
}

func (k ImageKey) VulkanID() (uint64, bool) {
	if k.kind != kindVulkan {
		return 0, false
	}
	return k.payload.(uint64), true
}

func (k ImageKey) String() string {
	switch k.kind {
	case kindNone:
		return "ImageKey::None"
	case kindURL:
		return fmt.Sprintf("ImageKey::URL(%q)", k.payload)
	case kindPath:
		return fmt.Sprintf("ImageKey::Path(%q)", k.payload)
	case kindGlyph:
		return fmt.Sprintf("ImageKey::Glyph(%+v)", k.payload)
	case kindUser:
		return fmt.Sprintf("ImageKey::User(%s)", k.payload.(userKey).typeTag)
	case kindVulkan:
		return fmt.Sprintf("ImageKey::Vulkan(%d)", k.payload)
	default:
		return "ImageKey::?"
	}
}
