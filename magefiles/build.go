//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

func buildShaders() error {
	fmt.Println("Build shaders...")
	vkSDKPath := os.Getenv("VULKAN_SDK")
	if _, err := executeCmd(fmt.Sprintf("%s/bin/glslc", vkSDKPath), withArgs("-fshader-stage=vert", "assets/shaders/basalt.ui.vert.glsl", "-o", "assets/shaders/basalt.ui.vert.spv"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd(fmt.Sprintf("%s/bin/glslc", vkSDKPath), withArgs("-fshader-stage=frag", "assets/shaders/basalt.ui.frag.glsl", "-o", "assets/shaders/basalt.ui.frag.spv"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd(fmt.Sprintf("%s/bin/glslc", vkSDKPath), withArgs("-fshader-stage=vert", "assets/shaders/basalt.composite.vert.glsl", "-o", "assets/shaders/basalt.composite.vert.spv"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd(fmt.Sprintf("%s/bin/glslc", vkSDKPath), withArgs("-fshader-stage=frag", "assets/shaders/basalt.composite.frag.glsl", "-o", "assets/shaders/basalt.composite.frag.spv"), withStream()); err != nil {
		return err
	}
	return nil
}

// Compiles the UI and composite GLSL shaders to SPIR-V with glslc.
func (Build) Shaders() error {
	return buildShaders()
}
