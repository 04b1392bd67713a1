// Command basaltdemo wires every piece of the render core into a
// runnable host: a GLFW window, the Vulkan backend, the render
// context/renderer loop, and the worker coordinator driving a single
// demo bin. It plays the role the teacher's root main.go + testbed
// package played for the 3D engine, replacing the scene-graph demo
// with a minimal UI-bin one.
package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spaghettifunk/basalt/assets"
	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/config"
	"github.com/spaghettifunk/basalt/core"
	"github.com/spaghettifunk/basalt/imagecache"
	"github.com/spaghettifunk/basalt/imagekey"
	"github.com/spaghettifunk/basalt/render"
	rendercontext "github.com/spaghettifunk/basalt/render/context"
	"github.com/spaghettifunk/basalt/render/worker"
	"github.com/spaghettifunk/basalt/vulkan"
	"github.com/spaghettifunk/basalt/window"
)

func main() {
	if err := run(); err != nil {
		core.LogError("basaltdemo: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Default()
	if path := os.Getenv("BASALT_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	core.SetDebug(cfg.Dev)

	shaders, err := assets.LoadShaderSet("assets/shaders")
	if err != nil {
		return err
	}

	win, err := window.New(window.Options{Title: "basaltdemo", Width: 1280, Height: 720})
	if err != nil {
		return err
	}

	renderCh := make(chan render.RenderEvent, 64)

	backend, err := vulkan.NewBackend(win, shaders, 4, rendercontext.ShapeUIOnly, nil)
	if err != nil {
		return err
	}

	rc := rendercontext.NewRenderContext(backend, rendercontext.ShapeUIOnly, uint8(cfg.MSAA), cfg.VSync == config.VSyncOn)
	rc.CheckExtent()

	cache := imagecache.New()
	backings := worker.NewManager(cfg.AtlasDefaultSize)
	backings.SetImageAllocator(backend)
	vertexes := worker.NewVertexStreamManager(backend)
	pool := worker.NewPool(cfg.RenderWorkers, demoComputeGeometry)

	coordinator := worker.NewCoordinator(pool, backings, vertexes, cache, imagecache.VulkanFormatR8G8B8A8Unorm, win.Events(), renderCh)

	renderer := render.NewRenderer(rc, renderCh, cfg.ConservativeDraw)

	var watcher *assets.Watcher
	if cfg.Dev {
		watcher, err = assets.NewWatcher("assets")
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	demoBin := bin.New(1)
	win.AssociateBin(demoBin)

	done := make(chan error, 1)
	go func() { done <- renderer.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(4 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			win.Close()
			return <-done

		case err := <-done:
			return err

		case <-ticker.C:
			win.PollEvents()
			if win.ShouldClose() {
				win.Close()
				return <-done
			}
			if !coordinator.DrainWindowEvents() {
				win.Close()
				return <-done
			}
			if _, err := coordinator.RunCycle(); err != nil {
				win.Close()
				<-done
				return err
			}
		}
	}
}

// demoComputeGeometry is a placeholder bin.ComputeGeometry: the real
// style engine and text shaper are out of scope for this module
// (spec.md §1), so the demo just emits an empty image-use set and no
// vertexes. A host wiring a real UI stack supplies its own
// implementation here instead.
func demoComputeGeometry(b *bin.Bin, ctx *bin.UpdateContext) (bin.Geometry, *bin.GeometryMetrics) {
	return bin.Geometry{
		Images:   imagekey.NewSet(),
		Vertexes: map[float32]*bin.VertexState{},
	}, nil
}
