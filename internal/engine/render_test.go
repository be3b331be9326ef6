package engine

import (
	"slices"
	"testing"

	"github.com/inamate/rectscene/internal/document"
)

func ops(cmds []DrawCommand) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Op
	}
	return out
}

func TestDrawElementCallOrder(t *testing.T) {
	rec := NewRecorder()
	el := rect("a", 100, 50, 299, 149, 0.5)
	el.Color = "#abcdef"
	DrawElement(rec, el)

	cmds := rec.Commands()
	want := []string{OpSave, OpTranslate, OpRotate, OpFillStyle, OpFillRect, OpRestore}
	if got := ops(cmds); !slices.Equal(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}

	// Odd sizes keep their fractional centers.
	if got := cmds[1].Args; !slices.Equal(got, []float64{249.5, 124.5}) {
		t.Errorf("translate args = %v, want [249.5 124.5]", got)
	}
	if got := cmds[2].Args; !slices.Equal(got, []float64{0.5}) {
		t.Errorf("rotate args = %v, want [0.5]", got)
	}
	if cmds[3].Value != "#abcdef" {
		t.Errorf("fillStyle = %q, want #abcdef", cmds[3].Value)
	}
	if got := cmds[4].Args; !slices.Equal(got, []float64{-149.5, -74.5, 299, 149}) {
		t.Errorf("fillRect args = %v", got)
	}
}

func TestDrawHoverBorderStyle(t *testing.T) {
	rec := NewRecorder()
	DrawHoverBorder(rec, rect("a", 0, 0, 40, 20, 0))

	cmds := rec.Commands()
	want := []string{OpSave, OpTranslate, OpRotate, OpStrokeStyle, OpLineWidth, OpStrokeRect, OpRestore}
	if got := ops(cmds); !slices.Equal(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	if cmds[3].Value != HoverColor {
		t.Errorf("strokeStyle = %q, want %q", cmds[3].Value, HoverColor)
	}
	if cmds[4].Args[0] != HoverLineWidth {
		t.Errorf("lineWidth = %v, want %v", cmds[4].Args[0], HoverLineWidth)
	}
	if got := cmds[5].Args; !slices.Equal(got, []float64{-20, -10, 40, 20}) {
		t.Errorf("strokeRect args = %v", got)
	}
}

func TestDrawElementZeroSize(t *testing.T) {
	rec := NewRecorder()
	DrawElement(rec, rect("a", 10, 10, -4, 0, 0))
	cmds := rec.Commands()
	if got := cmds[4].Args; !slices.Equal(got, []float64{0, 0, 0, 0}) {
		t.Errorf("fillRect args = %v, want zero rect", got)
	}
}

func TestRenderSceneOrder(t *testing.T) {
	rec := NewRecorder()
	elements := []document.Element{
		{ID: "a", Width: 10, Height: 10, Color: "#000001"},
		{ID: "b", Width: 10, Height: 10, Color: "#000002"},
	}
	hovered := elements[0]
	RenderScene(rec, 400, 300, elements, &hovered)

	cmds := rec.Commands()
	if cmds[0].Op != OpClearRect || !slices.Equal(cmds[0].Args, []float64{0, 0, 400, 300}) {
		t.Fatalf("first command = %+v, want clearRect of the canvas", cmds[0])
	}

	var fills []string
	strokeAt, lastFill := -1, -1
	for i, c := range cmds {
		switch c.Op {
		case OpFillStyle:
			fills = append(fills, c.Value)
			lastFill = i
		case OpStrokeRect:
			strokeAt = i
		}
	}
	if !slices.Equal(fills, []string{"#000001", "#000002"}) {
		t.Errorf("fill order = %v", fills)
	}
	if strokeAt < lastFill {
		t.Errorf("hover border drawn at %d before last fill at %d", strokeAt, lastFill)
	}
	if rec.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", rec.Frames())
	}
}

func TestRenderSceneWithoutHover(t *testing.T) {
	rec := NewRecorder()
	RenderScene(rec, 100, 100, []document.Element{{ID: "a", Width: 5, Height: 5}}, nil)
	for _, c := range rec.Commands() {
		if c.Op == OpStrokeRect {
			t.Fatal("unexpected strokeRect without hover")
		}
	}
}

func TestRecorderClearStartsFrame(t *testing.T) {
	rec := NewRecorder()
	rec.Save()
	rec.ClearRect(0, 0, 1, 1)
	rec.Restore()
	if got := ops(rec.Commands()); !slices.Equal(got, []string{OpClearRect, OpRestore}) {
		t.Errorf("ops = %v", got)
	}
	if rec.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", rec.Frames())
	}
}

func TestDrawCommandsToJSON(t *testing.T) {
	got, err := DrawCommandsToJSON(nil)
	if err != nil || got != "[]" {
		t.Errorf("DrawCommandsToJSON(nil) = %q, %v", got, err)
	}
	got, _ = DrawCommandsToJSON([]DrawCommand{{Op: OpFillStyle, Value: "#fff"}, {Op: OpSave}})
	want := `[{"op":"fillStyle","value":"#fff"},{"op":"save"}]`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}
