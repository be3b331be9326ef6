package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/scene"
	"github.com/inamate/rectscene/internal/store"
	"github.com/inamate/rectscene/internal/typeid"
)

// SceneSource reads scenes to render.
type SceneSource interface {
	Get(ctx context.Context, sceneID string) (*store.Scene, error)
	Document(ctx context.Context, sceneID string) (*document.SceneData, error)
}

type Handler struct {
	ffmpegPath string
	scenes     SceneSource
	simRate    int
	speed      float64
}

// NewHandler creates the render and export handler. simRate and speed
// should match the live animation so exports rotate at the same pace.
func NewHandler(ffmpegPath string, scenes SceneSource, simRate int, speed float64) *Handler {
	return &Handler{ffmpegPath: ffmpegPath, scenes: scenes, simRate: simRate, speed: speed}
}

type exportRequest struct {
	Format     string  `json:"format"`
	FPS        int     `json:"fps"`
	Scale      float64 `json:"scale"`
	Background string  `json:"background"`
	Name       string  `json:"name"`
}

// RenderPNG serves the scene as a PNG. Query parameters: scale (1-4) and
// background ("#rrggbb").
func (h *Handler) RenderPNG(w http.ResponseWriter, r *http.Request) {
	sc, data, ok := h.load(w, r)
	if !ok {
		return
	}

	scale, _ := strconv.ParseFloat(r.URL.Query().Get("scale"), 64)
	img := RenderImage(data, sc.Width, sc.Height, clampScale(scale), r.URL.Query().Get("background"))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Error("encode png", "scene", sc.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// ExportVideo renders every frame of the rotation animation and encodes them
// with ffmpeg as mp4, gif or webm.
func (h *Handler) ExportVideo(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	format := req.Format
	if format != "mp4" && format != "gif" && format != "webm" {
		http.Error(w, "invalid format: must be mp4, gif, or webm", http.StatusBadRequest)
		return
	}

	fps := req.FPS
	if fps <= 0 || fps > 120 {
		fps = 24
	}

	sc, data, ok := h.load(w, r)
	if !ok {
		return
	}

	name := req.Name
	if name == "" {
		name = sc.Name
	}
	name = sanitizeName(name)

	exportID := typeid.NewExportID()

	// Create temp directory for frames
	tempDir, err := os.MkdirTemp("", exportID+"-*")
	if err != nil {
		slog.Error("create temp dir", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tempDir)

	frameCount, err := RenderFrames(data, sc.Width, sc.Height, FrameOptions{
		FPS:        fps,
		SimRate:    h.simRate,
		Scale:      clampScale(req.Scale),
		Speed:      h.speed,
		Background: req.Background,
	}, func(i int, img *image.RGBA) error {
		return writePNG(filepath.Join(tempDir, fmt.Sprintf("frame_%04d.png", i)), img)
	})
	if err != nil {
		if errors.Is(err, ErrTooManyFrames) {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		slog.Error("render frames", "export", exportID, "scene", sc.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	slog.Info("export started", "export", exportID, "scene", sc.ID, "format", format, "frames", frameCount, "fps", fps)

	input := filepath.Join(tempDir, "frame_%04d.png")
	var outputFile string
	var contentType string
	var cmdErr error

	switch format {
	case "mp4":
		outputFile = filepath.Join(tempDir, "output.mp4")
		contentType = "video/mp4"
		cmdErr = h.runFfmpeg(r.Context(),
			"-framerate", strconv.Itoa(fps),
			"-i", input,
			"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-crf", "18",
			"-preset", "fast",
			"-movflags", "+faststart",
			outputFile,
		)

	case "gif":
		outputFile = filepath.Join(tempDir, "output.gif")
		contentType = "image/gif"
		// Two-pass GIF: generate palette then apply
		palettePath := filepath.Join(tempDir, "palette.png")
		cmdErr = h.runFfmpeg(r.Context(),
			"-framerate", strconv.Itoa(fps),
			"-i", input,
			"-vf", "palettegen=stats_mode=diff",
			palettePath,
		)
		if cmdErr == nil {
			cmdErr = h.runFfmpeg(r.Context(),
				"-framerate", strconv.Itoa(fps),
				"-i", input,
				"-i", palettePath,
				"-lavfi", "paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle",
				outputFile,
			)
		}

	case "webm":
		outputFile = filepath.Join(tempDir, "output.webm")
		contentType = "video/webm"
		cmdErr = h.runFfmpeg(r.Context(),
			"-framerate", strconv.Itoa(fps),
			"-i", input,
			"-c:v", "libvpx-vp9",
			"-crf", "30",
			"-b:v", "0",
			"-pix_fmt", "yuva420p",
			outputFile,
		)
	}

	if cmdErr != nil {
		slog.Error("ffmpeg failed", "export", exportID, "error", cmdErr)
		http.Error(w, fmt.Sprintf("encoding failed: %v", cmdErr), http.StatusInternalServerError)
		return
	}

	// Stream result file back
	outFile, err := os.Open(outputFile)
	if err != nil {
		slog.Error("open output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer outFile.Close()

	stat, err := outFile.Stat()
	if err != nil {
		slog.Error("stat output file", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	io.Copy(w, outFile)

	slog.Info("export complete", "export", exportID, "scene", sc.ID, "format", format, "size", stat.Size())
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*store.Scene, *document.SceneData, bool) {
	sceneID := mux.Vars(r)["sceneId"]

	sc, err := h.scenes.Get(r.Context(), sceneID)
	if err == nil {
		var data *document.SceneData
		if data, err = h.scenes.Document(r.Context(), sceneID); err == nil {
			return sc, data, true
		}
	}

	if errors.Is(err, scene.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
	} else {
		slog.Error("load scene for export", "scene", sceneID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
	return nil, nil, false
}

func (h *Handler) runFfmpeg(ctx context.Context, args ...string) error {
	// Prepend -y to overwrite output without prompting
	fullArgs := append([]string{"-y"}, args...)
	cmd := exec.CommandContext(ctx, h.ffmpegPath, fullArgs...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%v: %s", err, stderr.String())
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func clampScale(s float64) float64 {
	if !(s >= 1) {
		return 1
	}
	return min(s, 4)
}

func sanitizeName(name string) string {
	if name == "" {
		name = "animation"
	}
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
}
