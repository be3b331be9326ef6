package engine

import (
	"encoding/json"
)

// Draw command operations. Names match the Canvas2D methods and properties the
// frontend replays them on.
const (
	OpClearRect   = "clearRect"
	OpSave        = "save"
	OpRestore     = "restore"
	OpTranslate   = "translate"
	OpRotate      = "rotate"
	OpFillStyle   = "fillStyle"
	OpStrokeStyle = "strokeStyle"
	OpLineWidth   = "lineWidth"
	OpFillRect    = "fillRect"
	OpStrokeRect  = "strokeRect"
)

// DrawCommand is a single drawing operation for the frontend to execute.
type DrawCommand struct {
	Op    string    `json:"op"`
	Args  []float64 `json:"args,omitempty"`
	Value string    `json:"value,omitempty"`
}

// Recorder is a Surface that records draw calls instead of rasterizing them.
// A ClearRect starts a new frame and drops whatever was recorded before it.
type Recorder struct {
	commands []DrawCommand
	frames   int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Commands returns the commands recorded since the last clear.
func (r *Recorder) Commands() []DrawCommand {
	out := make([]DrawCommand, len(r.commands))
	copy(out, r.commands)
	return out
}

// Frames returns how many frames (clears) have been recorded.
func (r *Recorder) Frames() int {
	return r.frames
}

func (r *Recorder) ClearRect(x, y, width, height float64) {
	r.commands = r.commands[:0]
	r.frames++
	r.push(OpClearRect, x, y, width, height)
}

func (r *Recorder) Save()    { r.push(OpSave) }
func (r *Recorder) Restore() { r.push(OpRestore) }

func (r *Recorder) Translate(x, y float64)  { r.push(OpTranslate, x, y) }
func (r *Recorder) Rotate(radians float64)  { r.push(OpRotate, radians) }
func (r *Recorder) SetLineWidth(w float64)  { r.push(OpLineWidth, w) }
func (r *Recorder) SetFillStyle(c string)   { r.commands = append(r.commands, DrawCommand{Op: OpFillStyle, Value: c}) }
func (r *Recorder) SetStrokeStyle(c string) { r.commands = append(r.commands, DrawCommand{Op: OpStrokeStyle, Value: c}) }

func (r *Recorder) FillRect(x, y, width, height float64) {
	r.push(OpFillRect, x, y, width, height)
}

func (r *Recorder) StrokeRect(x, y, width, height float64) {
	r.push(OpStrokeRect, x, y, width, height)
}

func (r *Recorder) push(op string, args ...float64) {
	r.commands = append(r.commands, DrawCommand{Op: op, Args: args})
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		commands = []DrawCommand{}
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
