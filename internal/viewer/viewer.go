// Package viewer implements the interactive mesh viewer: window, render
// loop, camera controls and hot reload around one scene.
package viewer

import (
	"fmt"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/rendox/internal/assets"
	"github.com/Faultbox/rendox/internal/config"
	"github.com/Faultbox/rendox/internal/engine/camera"
	"github.com/Faultbox/rendox/internal/engine/debug"
	"github.com/Faultbox/rendox/internal/engine/draw"
	"github.com/Faultbox/rendox/internal/engine/gpu/gldevice"
	"github.com/Faultbox/rendox/internal/engine/input"
	"github.com/Faultbox/rendox/internal/engine/lighting"
	"github.com/Faultbox/rendox/internal/engine/picking"
	"github.com/Faultbox/rendox/internal/engine/resource"
	"github.com/Faultbox/rendox/internal/engine/scene"
	"github.com/Faultbox/rendox/internal/engine/window"
	"github.com/Faultbox/rendox/internal/logger"
)

const screenshotDir = "screenshots"

// Viewer is the main viewer instance.
type Viewer struct {
	cfg     *config.Config
	log     *zap.Logger
	running bool

	window   *window.Window
	device   *gldevice.Device
	renderer *gldevice.Renderer
	input    *input.Input
	camera   *camera.OrbitCamera
	sun      lighting.Sun
	shots    *debug.Capture
	capture  bool

	assets  *assets.Manager
	scene   *scene.Scene
	content *content
	watcher *resource.Watcher
}

// New creates the window, the GL device and the scene, and loads the
// configured assets.
func New(cfg *config.Config) (*Viewer, error) {
	v := &Viewer{
		cfg:    cfg,
		log:    logger.Named("viewer"),
		input:  input.New(),
		camera: camera.NewOrbitCamera(),
		sun:    lighting.Sun{Azimuth: 35, Elevation: 55},
		shots:  debug.NewCapture(screenshotDir, "rendox"),
	}
	v.log.Info("initializing viewer",
		zap.String("title", cfg.Window.Title),
		zap.Int("width", cfg.Window.Width),
		zap.Int("height", cfg.Window.Height),
	)

	// Window first: the GL context must exist before the device.
	var err error
	v.window, err = window.New(window.Config{
		Title:      cfg.Window.Title,
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	v.device, err = gldevice.New()
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	width, height := v.window.DrawableSize()
	v.renderer = gldevice.NewRenderer(gldevice.Config{
		Width:      width,
		Height:     height,
		ClearColor: cfg.Renderer.ClearColor,
		Wireframe:  cfg.Renderer.Wireframe,
	})
	v.camera.FOV = cfg.Renderer.FOV

	v.assets = newAssets(cfg.Assets.Roots, v.log)
	reg := resource.New(
		resource.WithSource(v.assets),
		resource.WithMaxTextureSize(cfg.Renderer.MaxTextureSize),
	)
	v.scene = scene.New(reg, draw.NewQueue())
	v.content = loadContent(v.scene, cfg.Assets, v.log)
	v.fitCamera()

	if cfg.Assets.Watch {
		v.watcher, err = resource.NewWatcher(reg, v.assets, cfg.Assets.Debounce)
		if err != nil {
			v.log.Warn("hot reload disabled", zap.Error(err))
		} else if err := v.watcher.Sync(); err != nil {
			v.log.Warn("hot reload incomplete", zap.Error(err))
		}
	}

	v.log.Info("viewer initialized", zap.Int("meshes", len(v.content.models)))
	return v, nil
}

// newAssets searches the working directory, then the configured roots in
// increasing priority. Missing roots are skipped.
func newAssets(roots []string, log *zap.Logger) *assets.Manager {
	m := assets.NewManager()
	for _, dir := range append([]string{"."}, roots...) {
		if err := m.AddRoot(dir); err != nil {
			log.Warn("asset root skipped", zap.String("dir", dir), zap.Error(err))
		}
	}
	return m
}

func (v *Viewer) fitCamera() {
	if b, ok := v.content.extent(v.cfg.Scene); ok {
		v.camera.FitToBounds(b)
	}
}

// Run starts the render loop and returns when the window is closed.
func (v *Viewer) Run() error {
	v.running = true

	start := time.Now()
	lastTime := start
	frameCount := 0
	fpsTimer := start

	var minFrame time.Duration
	if v.cfg.Window.FPSLimit > 0 {
		minFrame = time.Second / time.Duration(v.cfg.Window.FPSLimit)
	}

	v.log.Info("starting render loop")

	for v.running {
		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		if v.input.Update() {
			v.running = false
			break
		}
		v.handleEvents(dt)

		v.content.queue(v.cfg.Scene, float32(now.Sub(start).Seconds()))
		v.render()
		if v.capture {
			v.screenshot()
			v.capture = false
		}
		v.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.window.SetTitle(fmt.Sprintf("%s | %d fps | %d draws, %d instances",
				v.cfg.Window.Title, frameCount, v.renderer.DrawCalls, v.renderer.Instances))
			v.log.Debug("fps", zap.Int("count", frameCount), zap.Float32("dt_ms", dt*1000))
			frameCount = 0
			fpsTimer = time.Now()
		}

		if minFrame > 0 {
			if spent := time.Since(now); spent < minFrame {
				time.Sleep(minFrame - spent)
			}
		}
	}

	return nil
}

func (v *Viewer) handleEvents(dt float32) {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			// Events carry screen coordinates; the viewport needs pixels.
			v.renderer.Resize(v.window.DrawableSize())
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				v.running = false
			case sdl.SCANCODE_F:
				v.fitCamera()
			case sdl.SCANCODE_R:
				v.reloadAll()
			case sdl.SCANCODE_F11:
				v.window.ToggleFullscreen()
			case sdl.SCANCODE_F12:
				v.capture = true
			}
		case input.EventMouseDown:
			if event.Button == sdl.BUTTON_RIGHT {
				v.focus(event.MouseX, event.MouseY)
			}
		case input.EventMouseMove:
			if v.input.IsButtonDown(sdl.BUTTON_LEFT) {
				v.camera.HandleDrag(float32(event.DeltaX), float32(event.DeltaY))
			}
		case input.EventMouseWheel:
			v.camera.HandleZoom(float32(event.DeltaY))
		case input.EventFileDrop:
			if v.content.add(event.Path) {
				v.fitCamera()
				v.watch(event.Path)
			}
		}
	}

	var forward, right, up float32
	if v.input.IsKeyDown(sdl.SCANCODE_W) {
		forward++
	}
	if v.input.IsKeyDown(sdl.SCANCODE_S) {
		forward--
	}
	if v.input.IsKeyDown(sdl.SCANCODE_D) {
		right++
	}
	if v.input.IsKeyDown(sdl.SCANCODE_A) {
		right--
	}
	if v.input.IsKeyDown(sdl.SCANCODE_E) {
		up++
	}
	if v.input.IsKeyDown(sdl.SCANCODE_Q) {
		up--
	}
	if v.input.IsKeyDown(sdl.SCANCODE_LEFT) {
		v.sun.Rotate(-90 * dt)
	}
	if v.input.IsKeyDown(sdl.SCANCODE_RIGHT) {
		v.sun.Rotate(90 * dt)
	}
	if forward != 0 || right != 0 || up != 0 {
		scale := dt * 60
		v.camera.HandleMovement(forward*scale, right*scale, up*scale)
	}
}

// focus frames the instance under the cursor.
func (v *Viewer) focus(x, y int) {
	w, h := v.window.GetSize()
	inv := v.camera.ViewProj(v.renderer.Aspect()).Inv()
	ray := picking.ScreenToRay(float32(x), float32(y), float32(w), float32(h), inv)

	name, box, ok := v.content.pick(ray, v.cfg.Scene)
	if !ok {
		return
	}
	v.camera.FitToBounds(box)
	v.log.Debug("focused", zap.String("mesh", name))
}

func (v *Viewer) screenshot() {
	pixels, w, h := v.renderer.ReadPixels()
	img, err := debug.FromPixels(pixels, w, h)
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	path, err := v.shots.Save(img)
	if err != nil {
		v.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", path))
}

func (v *Viewer) watch(path string) {
	if v.watcher == nil {
		return
	}
	if err := v.watcher.Watch(path); err != nil {
		v.log.Warn("not watching", zap.String("path", path), zap.Error(err))
	}
}

// reloadAll queues every source the registry has read for reload.
func (v *Viewer) reloadAll() {
	paths := v.scene.Registry().SourcePaths()
	for _, p := range paths {
		v.scene.Registry().NotifyChanged(p)
	}
	v.log.Info("reload requested", zap.Int("sources", len(paths)))
}

func (v *Viewer) render() {
	batches := v.scene.Frame(v.device)

	v.renderer.Begin()
	v.renderer.Draw(batches, gldevice.View{
		ViewProj: v.camera.ViewProj(v.renderer.Aspect()),
		Eye:      v.camera.Position(),
		LightDir: v.sun.Direction(),
	})
}

// Close cleans up viewer resources.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.watcher != nil {
		if err := v.watcher.Close(); err != nil {
			v.log.Warn("closing watcher", zap.Error(err))
		}
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.device != nil {
		v.device.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
	if v.assets != nil {
		v.assets.Close()
	}
}
