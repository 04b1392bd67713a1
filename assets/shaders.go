package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spaghettifunk/basalt/vulkan"
)

// LoadShaderSet reads the four compiled SPIR-V modules the task graph
// needs (UI vertex/fragment, composite vertex/fragment) from dir. The
// filenames match magefiles/build.go's Build.Shaders output.
func LoadShaderSet(dir string) (vulkan.ShaderSet, error) {
	read := func(name string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("assets: load shader %s: %w", name, err)
		}
		return data, nil
	}

	uiVert, err := read("basalt.ui.vert.spv")
	if err != nil {
		return vulkan.ShaderSet{}, err
	}
	uiFrag, err := read("basalt.ui.frag.spv")
	if err != nil {
		return vulkan.ShaderSet{}, err
	}
	compositeVert, err := read("basalt.composite.vert.spv")
	if err != nil {
		return vulkan.ShaderSet{}, err
	}
	compositeFrag, err := read("basalt.composite.frag.spv")
	if err != nil {
		return vulkan.ShaderSet{}, err
	}

	return vulkan.ShaderSet{
		UIVert:        uiVert,
		UIFrag:        uiFrag,
		CompositeVert: compositeVert,
		CompositeFrag: compositeFrag,
	}, nil
}
