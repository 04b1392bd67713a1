package assets

import (
	"fmt"
	"path/filepath"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/basalt/bin"
)

// BitmapFont is the subset of an AngelCode .fnt descriptor a host needs
// to register a default font and locate its glyph atlas pages. Glyph
// metrics, kerning, and shaping are out of scope here (spec.md §1's
// text shaper is external) — this only gets a font onto the screen via
// DefaultFont, not a real glyph layout.
type BitmapFont struct {
	Default    bin.DefaultFont
	Pages      []string
	LineHeight int32
	Baseline   int32
}

// LoadBitmapFont parses an AngelCode .fnt file and derives the
// DefaultFont a host can feed to window.Window.SetDefaultFont, plus the
// page image paths (relative to the .fnt file's directory) that need to
// be loaded into the image cache before glyphs from this font can be
// drawn.
func LoadBitmapFont(path string) (BitmapFont, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return BitmapFont{}, fmt.Errorf("assets: load bitmap font %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	pages := make([]string, len(font.Descriptor.Pages))
	for i, p := range font.Descriptor.Pages {
		pages[i] = filepath.Join(dir, p.File)
	}

	weight := uint16(400)
	if font.Descriptor.Info.Bold {
		weight = 700
	}

	return BitmapFont{
		Default: bin.DefaultFont{
			Family: font.Descriptor.Info.Face,
			Weight: weight,
		},
		Pages:      pages,
		LineHeight: int32(font.Descriptor.Common.LineHeight),
		Baseline:   int32(font.Descriptor.Common.Base),
	}, nil
}
