package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/inamate/rectscene/internal/config"
	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/engine"
	"github.com/inamate/rectscene/internal/store"
)

const background = "#ffffff"

type game struct {
	scene    *engine.Scene
	animator *engine.Animator
	surface  *engine.RasterSurface
	canvas   *ebiten.Image

	sceneID string
	db      store.Store
	saver   *store.Debouncer

	mu      sync.Mutex
	pending []byte

	dirty      bool
	unsaved    bool
	status     string
	layoutW    int
	layoutH    int
	lastMouseX int
	lastMouseY int
}

func newGame(db store.Store, sceneID string, width, height int, speed float64, delay time.Duration) *game {
	g := &game{
		scene:   engine.NewScene(float64(width), float64(height)),
		sceneID: sceneID,
		db:      db,
		dirty:   true,
		layoutW: width,
		layoutH: height,
	}
	g.animator = engine.NewAnimator(g.scene, speed)
	g.setSurface(width, height)
	g.saver = store.NewDebouncer(delay, g.save)

	g.scene.Subscribe(func(c engine.Change) {
		g.dirty = true
		if c.Kind.Persistent() && !c.Kind.PerFrame() {
			g.unsaved = true
		}
	})
	g.animator.OnComplete(func() {
		g.status = "animation complete"
		g.unsaved = true
	})
	return g
}

func (g *game) setSurface(width, height int) {
	g.surface = engine.NewRasterSurface(width, height, 1)
	g.canvas = ebiten.NewImage(width, height)
	g.scene.SetSurface(g.surface)
}

// load restores the stored scene, seeding the sample scene on first launch.
func (g *game) load(ctx context.Context) error {
	snap, err := g.db.LatestSnapshot(ctx, g.sceneID)
	if errors.Is(err, store.ErrNotFound) {
		g.scene.Load(document.NewSampleScene())
		return nil
	}
	if err != nil {
		return err
	}
	data, err := document.Decode(snap.Document)
	if err != nil {
		slog.Warn("stored scene is invalid, starting empty", "scene", g.sceneID, "error", err)
		data = document.NewEmptyScene()
	}
	g.scene.Load(data)
	g.unsaved = false
	return nil
}

// save runs on the debouncer's goroutine and writes the latest encoded scene.
func (g *game) save() {
	g.mu.Lock()
	doc := g.pending
	g.mu.Unlock()
	if doc == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := g.db.SaveSnapshot(ctx, g.sceneID, doc)
	if err != nil {
		slog.Error("save scene", "scene", g.sceneID, "error", err)
		return
	}
	slog.Debug("scene saved", "scene", g.sceneID, "version", snap.Version)
}

func (g *game) Update() error {
	if w, h := g.layoutW, g.layoutH; w > 0 && h > 0 {
		if cw, ch := g.scene.Size(); float64(w) != cw || float64(h) != ch {
			g.setSurface(w, h)
			g.scene.Resize(float64(w), float64(h))
		}
	}

	g.handleMouse()
	g.handleKeys()
	g.animator.Frame(time.Now())

	if g.unsaved {
		g.unsaved = false
		doc, err := document.Encode(g.scene.Snapshot())
		if err != nil {
			return fmt.Errorf("encode scene: %w", err)
		}
		g.mu.Lock()
		g.pending = doc
		g.mu.Unlock()
		g.saver.Trigger()
	}
	return nil
}

func (g *game) handleMouse() {
	x, y := ebiten.CursorPosition()
	w, h := g.scene.Size()
	inside := x >= 0 && y >= 0 && float64(x) < w && float64(y) < h

	if x != g.lastMouseX || y != g.lastMouseY {
		g.lastMouseX, g.lastMouseY = x, y
		if inside {
			g.scene.SetHover(float64(x), float64(y))
		} else {
			g.scene.ClearHover()
		}
	}

	if inside && inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		g.scene.RecolorAt(float64(x), float64(y))
	}
}

func (g *game) handleKeys() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta)

	for _, k := range inpututil.AppendJustPressedKeys(nil) {
		switch {
		case k == ebiten.KeyC && ctrl:
			g.copyScene()
		case k == ebiten.KeyV && ctrl:
			g.pasteScene()
		case k == ebiten.KeyA:
			w, h := g.scene.Size()
			g.scene.AddElement(w, h)
		case k == ebiten.KeyP:
			if g.animator.Start(time.Now()) {
				g.status = "playing"
			}
		case k == ebiten.KeyEscape:
			if g.animator.Cancel() {
				g.status = "cancelled"
				g.unsaved = true
			}
		case k == ebiten.KeyDelete || k == ebiten.KeyBackspace:
			g.animator.Cancel()
			g.scene.Clear()
			g.status = "cleared"
		}
	}
}

func (g *game) copyScene() {
	doc, err := document.Encode(g.scene.Snapshot())
	if err != nil {
		g.status = "copy failed: " + err.Error()
		return
	}
	if err := clipboard.WriteAll(string(doc)); err != nil {
		g.status = "copy failed: " + err.Error()
		return
	}
	g.status = "scene copied to clipboard"
}

func (g *game) pasteScene() {
	text, err := clipboard.ReadAll()
	if err != nil {
		g.status = "paste failed: " + err.Error()
		return
	}
	data, err := document.Decode([]byte(text))
	if err != nil {
		g.status = "clipboard is not a scene: " + err.Error()
		return
	}
	g.animator.Cancel()
	g.scene.Load(data)
	g.status = fmt.Sprintf("imported %d elements", g.scene.Len())
}

func (g *game) Draw(screen *ebiten.Image) {
	if g.dirty {
		g.dirty = false
		g.canvas.WritePixels(g.surface.Image().Pix)
	}
	screen.Fill(engine.ParseColor(background))
	screen.DrawImage(g.canvas, nil)

	ebitenutil.DebugPrint(screen, fmt.Sprintf(
		"A add  P play  Esc cancel  Del clear  Ctrl+C/V copy/paste\n%d elements  %s  %s",
		g.scene.Len(), g.animator.State(), g.status,
	))
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.layoutW, g.layoutH = outsideWidth, outsideHeight
	return outsideWidth, outsideHeight
}

func openLocalScene(ctx context.Context, db store.Store, id string, width, height int) error {
	_, err := db.GetScene(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		_, err = db.CreateScene(ctx, store.Scene{ID: id, Name: "Desktop", Width: width, Height: height})
	}
	return err
}

func main() {
	sceneID := flag.String("scene", "desktop", "local scene id to open")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := openLocalScene(ctx, db, *sceneID, cfg.CanvasWidth, cfg.CanvasHeight); err != nil {
		slog.Error("Failed to open scene", "scene", *sceneID, "error", err)
		os.Exit(1)
	}

	g := newGame(db, *sceneID, cfg.CanvasWidth, cfg.CanvasHeight, cfg.RotationSpeed, cfg.SaveDebounce)
	if err := g.load(ctx); err != nil {
		slog.Error("Failed to load scene", "scene", *sceneID, "error", err)
		os.Exit(1)
	}

	ebiten.SetWindowTitle("rectscene")
	ebiten.SetWindowSize(cfg.CanvasWidth, cfg.CanvasHeight)
	ebiten.SetWindowResizable(true)
	ebiten.SetTPS(cfg.FrameRate)

	if err := ebiten.RunGame(g); err != nil {
		slog.Error("Game exited", "error", err)
	}
	g.saver.Flush()
}
