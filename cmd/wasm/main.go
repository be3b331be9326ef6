//go:build js && wasm

package main

import (
	"syscall/js"
	"time"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/engine"
)

var eng *engine.Engine

func main() {
	eng = engine.NewEngine(800, 600, engine.DefaultRotationSpeed)

	rectEngine := js.Global().Get("Object").New()

	// --- Commands (frontend → engine) ---
	rectEngine.Set("loadDocument", js.FuncOf(loadDocument))
	rectEngine.Set("loadSampleDocument", js.FuncOf(loadSampleDocument))
	rectEngine.Set("addElement", js.FuncOf(addElement))
	rectEngine.Set("recolorAt", js.FuncOf(recolorAt))
	rectEngine.Set("setHover", js.FuncOf(setHover))
	rectEngine.Set("clearHover", js.FuncOf(clearHover))
	rectEngine.Set("clear", js.FuncOf(clearScene))
	rectEngine.Set("resize", js.FuncOf(resize))
	rectEngine.Set("setDuration", js.FuncOf(setDuration))
	rectEngine.Set("play", js.FuncOf(play))
	rectEngine.Set("cancel", js.FuncOf(cancel))
	rectEngine.Set("tick", js.FuncOf(tick))

	// --- Queries (frontend ← engine) ---
	rectEngine.Set("render", js.FuncOf(render))
	rectEngine.Set("hitTest", js.FuncOf(hitTest))
	rectEngine.Set("getDocument", js.FuncOf(getDocument))
	rectEngine.Set("getPlaybackState", js.FuncOf(getPlaybackState))
	rectEngine.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))

	js.Global().Set("rectEngine", rectEngine)
	js.Global().Set("rectWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// nowFrom reads a performance.now() style millisecond timestamp. Without one
// the wall clock is used.
func nowFrom(args []js.Value, i int) time.Time {
	if len(args) > i && args[i].Type() == js.TypeNumber {
		return time.UnixMilli(0).Add(time.Duration(args[i].Float() * float64(time.Millisecond)))
	}
	return time.Now()
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

func fail(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

// --- Command Handlers ---

func loadDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail("missing document JSON")
	}
	if err := eng.LoadDocument(args[0].String()); err != nil {
		return fail(err.Error())
	}
	return ok()
}

func loadSampleDocument(this js.Value, args []js.Value) interface{} {
	eng.Load(document.NewSampleScene())
	return ok()
}

func addElement(this js.Value, args []js.Value) interface{} {
	el := eng.AddElement()
	return js.ValueOf(el.ID)
}

func recolorAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.RecolorAt(args[0].Float(), args[1].Float()))
}

func setHover(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf(false)
	}
	return js.ValueOf(eng.SetHover(args[0].Float(), args[1].Float()))
}

func clearHover(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.ClearHover())
}

func clearScene(this js.Value, args []js.Value) interface{} {
	eng.Clear()
	return nil
}

func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return nil
	}
	eng.Resize(args[0].Float(), args[1].Float())
	return nil
}

func setDuration(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return nil
	}
	eng.SetDuration(args[0].Float())
	return nil
}

func play(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Play(nowFrom(args, 0)))
}

func cancel(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Cancel())
}

// tick is called from requestAnimationFrame with its timestamp.
func tick(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Tick(nowFrom(args, 0)))
}

// --- Query Handlers ---

func render(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.Render())
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return js.ValueOf("")
	}
	return js.ValueOf(eng.HitTest(args[0].Float(), args[1].Float()))
}

func getDocument(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetDocument())
}

func getPlaybackState(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetPlaybackStateJSON(nowFrom(args, 0)))
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(eng.GetSelectionBounds())
}
