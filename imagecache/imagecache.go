// Package imagecache owns decoded image bytes behind a reference-counted,
// lifetime-policed store (spec.md §4.B). It never touches the GPU
// directly: ObtainData hands the render worker a pixel blob already
// converted to the worker's chosen internal format, and the worker is
// the one that uploads it.
package imagecache

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/basalt/core"
	"github.com/spaghettifunk/basalt/imagekey"
)

// Lifetime specifies how long an image should remain in the cache once
// it has no active references.
type Lifetime int

const (
	// LifetimeImmediate evicts the image as soon as its last reference
	// is released.
	LifetimeImmediate Lifetime = iota
	// LifetimeIndefinite keeps the image stored forever, even unused.
	LifetimeIndefinite
	// LifetimeSeconds keeps the image for the given grace period after
	// its last reference is released.
	LifetimeSeconds
)

// Lifetime is expressed as a (kind, seconds) pair rather than a Go sum
// type, since only LifetimeSeconds carries a payload.
type ImageCacheLifetime struct {
	Kind    Lifetime
	Seconds uint64
}

func Immediate() ImageCacheLifetime  { return ImageCacheLifetime{Kind: LifetimeImmediate} }
func Indefinite() ImageCacheLifetime { return ImageCacheLifetime{Kind: LifetimeIndefinite} }
func Seconds(s uint64) ImageCacheLifetime {
	return ImageCacheLifetime{Kind: LifetimeSeconds, Seconds: s}
}

// Format specifies the layout and colorspace of pixel data.
type Format int

const (
	LRGBA Format = iota
	LRGB
	LMono
	LMonoA
	SRGBA
	SRGB
	SMono
	SMonoA
)

// Components returns the number of channels the format carries.
func (f Format) Components() int {
	switch f {
	case LRGBA, SRGBA:
		return 4
	case LRGB, SRGB:
		return 3
	case LMonoA, SMonoA:
		return 2
	case LMono, SMono:
		return 1
	default:
		return 0
	}
}

// IsSRGB reports whether the format's samples are sRGB-encoded rather
// than linear.
func (f Format) IsSRGB() bool {
	switch f {
	case SRGBA, SRGB, SMono, SMonoA:
		return true
	default:
		return false
	}
}

// toLinear and toSRGB map a format to its counterpart in the other
// colorspace, keeping channel count fixed.
func (f Format) toLinear() Format {
	switch f {
	case SRGBA:
		return LRGBA
	case SRGB:
		return LRGB
	case SMono:
		return LMono
	case SMonoA:
		return LMonoA
	default:
		return f
	}
}

func (f Format) toSRGB() Format {
	switch f {
	case LRGBA:
		return SRGBA
	case LRGB:
		return SRGB
	case LMono:
		return SMono
	case LMonoA:
		return SMonoA
	default:
		return f
	}
}

// Depth is the per-channel bit depth of raw image data.
type Depth int

const (
	Depth8 Depth = iota
	Depth16
)

// Data is raw, non-encoded image data at one of the two supported
// depths (spec.md §4.B: "This is not an encoded format such as PNG").
type Data struct {
	Depth Depth
	D8    []uint8
	D16   []uint16
}

func (d Data) depth() Depth { return d.Depth }

func (d Data) len() int {
	if d.Depth == Depth16 {
		return len(d.D16)
	}
	return len(d.D8)
}

// image is the cache's internal record of a single loaded image.
type image struct {
	format Format
	width  uint32
	height uint32
	data   Data
}

type entry struct {
	image          image
	refs           int
	unusedSince    time.Time
	hasUnused      bool
	lifetime       ImageCacheLifetime
	associatedData any
}

// Info is the publicly visible description of a cached image, returned
// by LoadRaw/LoadEncoded/ObtainInfo.
type Info struct {
	Width          uint32
	Height         uint32
	Format         Format
	Depth          Depth
	AssociatedData any
}

// Obtained is a pixel blob converted to a caller-requested target
// format, produced only by ObtainData.
type Obtained struct {
	Width  uint32
	Height uint32
	Data   []byte
}

// Cache is the reference-counted, lifetime-policed image store.
//
// ImageKey embeds an `any` payload (see imagekey.ImageKey), which is not
// always a comparable Go value, so it cannot be used as a native map
// key without risking a runtime panic on comparison. The cache is keyed
// through imagekey.Map instead, the same open-addressed table the
// worker side uses.
type Cache struct {
	mu     sync.Mutex
	images *imagekey.Map[*entry]
}

func New() *Cache {
	return &Cache{images: imagekey.NewMap[*entry]()}
}

func infoFrom(e *entry) Info {
	return Info{
		Width:          e.image.width,
		Height:         e.image.height,
		Format:         e.image.format,
		Depth:          e.image.data.depth(),
		AssociatedData: e.associatedData,
	}
}

// LoadRaw stores already-decoded pixel data under key. If key already
// exists, the existing entry's info is returned unchanged — LoadRaw
// never overwrites.
func (c *Cache) LoadRaw(key imagekey.ImageKey, lifetime ImageCacheLifetime, format Format, width, height uint32, associatedData any, data Data) (Info, error) {
	expected := int(width) * int(height) * format.Components()
	if data.len() != expected {
		return Info{}, core.NewCacheError(core.KindInvalidLength,
			fmt.Errorf("expected %d samples, got %d", expected, data.len()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.images.Get(key); ok {
		return infoFrom(existing), nil
	}

	e := &entry{
		image:          image{format: format, width: width, height: height, data: data},
		lifetime:       lifetime,
		associatedData: associatedData,
	}
	c.images.Set(key, e)

	return infoFrom(e), nil
}

// ObtainInfo retrieves image information for multiple keys without
// mutating reference counts. A missing key yields a nil entry at its
// position.
func (c *Cache) ObtainInfo(keys []imagekey.ImageKey) []*Info {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Info, len(keys))
	for i, k := range keys {
		if e, ok := c.images.Get(k); ok {
			info := infoFrom(e)
			out[i] = &info
		}
	}
	return out
}

// Remove deletes key from the cache. If the image is currently in use
// (refs > 0), its lifetime is instead forced to Immediate so it evicts
// as soon as the last user releases it.
func (c *Cache) Remove(key imagekey.ImageKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.images.Get(key)
	if !ok {
		return
	}
	if e.refs > 0 {
		e.lifetime = Immediate()
		return
	}
	c.images.Remove(key)
}

// ObtainData is called once per update cycle by the render worker. For
// each key in unrefKeys, it decrements the reference count, stamping
// unusedSince when it reaches zero. For each key in obtainKeys, it
// increments the reference count and produces a pixel blob converted to
// targetFormat. Finally it sweeps the cache per the lifetime policy.
func (c *Cache) ObtainData(unrefKeys, obtainKeys []imagekey.ImageKey, targetFormat VulkanFormat) *imagekey.Map[Obtained] {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range unrefKeys {
		e, ok := c.images.Get(key)
		if !ok {
			continue
		}
		if e.refs > 0 {
			e.refs--
			if e.refs == 0 {
				e.unusedSince = time.Now()
				e.hasUnused = true
			}
		}
	}

	output := imagekey.NewMapWithCapacity[Obtained](len(obtainKeys))
	for _, key := range obtainKeys {
		e, ok := c.images.Get(key)
		if !ok {
			continue
		}
		e.refs++
		// a key obtained again is back in active use
		e.hasUnused = false

		output.Set(key, Obtained{
			Width:  e.image.width,
			Height: e.image.height,
			Data:   ConvertToVulkanFormat(e.image.format, e.image.data, targetFormat),
		})
	}

	c.images.Retain(func(_ imagekey.ImageKey, ePtr **entry) bool {
		e := *ePtr
		if e.refs != 0 {
			return true
		}
		switch e.lifetime.Kind {
		case LifetimeIndefinite:
			return true
		case LifetimeImmediate:
			return !e.hasUnused
		case LifetimeSeconds:
			if !e.hasUnused {
				return true
			}
			return time.Since(e.unusedSince) <= time.Duration(e.lifetime.Seconds)*time.Second
		default:
			return false
		}
	})

	return output
}
