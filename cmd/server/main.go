package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/rectscene/internal/auth"
	"github.com/inamate/rectscene/internal/collab"
	"github.com/inamate/rectscene/internal/config"
	"github.com/inamate/rectscene/internal/db"
	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/export"
	mw "github.com/inamate/rectscene/internal/middleware"
	"github.com/inamate/rectscene/internal/scene"
	"github.com/inamate/rectscene/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	authService := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)
	authHandler := auth.NewHandler(authService)

	sceneService := scene.NewService(st, cfg.CanvasWidth, cfg.CanvasHeight)
	sceneHandler := scene.NewHandler(sceneService, authService)

	// Scene loader for the collaboration hub
	loadScene := func(ctx context.Context, sceneID string) (*collab.LoadedScene, error) {
		sc, err := sceneService.Get(ctx, sceneID)
		if err != nil {
			return nil, err
		}
		data, err := sceneService.Document(ctx, sceneID)
		if err != nil {
			return nil, err
		}
		return &collab.LoadedScene{Data: data, Width: float64(sc.Width), Height: float64(sc.Height)}, nil
	}

	saveScene := func(ctx context.Context, sceneID string, data *document.SceneData) error {
		return sceneService.SaveDocument(ctx, sceneID, data)
	}

	hub := collab.NewHub(collab.HubOptions{
		Load:          loadScene,
		Save:          saveScene,
		FrameInterval: cfg.FrameInterval(),
		SaveDelay:     cfg.SaveDebounce,
		RotationSpeed: cfg.RotationSpeed,
	})
	sceneService.SetLive(hub)
	go hub.Run()

	exportHandler := export.NewHandler(cfg.FfmpegPath, sceneService, cfg.FrameRate, cfg.RotationSpeed)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Public API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scenes", sceneHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/scenes/{sceneId}", sceneHandler.Get).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}/document", sceneHandler.GetDocument).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}/render.png", exportHandler.RenderPNG).Methods("GET")
	api.HandleFunc("/scenes/{sceneId}/export", exportHandler.ExportVideo).Methods("POST", "OPTIONS")

	// Routes that change a scene need its edit token
	edit := api.PathPrefix("/scenes/{sceneId}").Subrouter()
	edit.Use(authService.RequireSceneToken)
	edit.HandleFunc("/document", sceneHandler.PutDocument).Methods("PUT", "OPTIONS")
	edit.HandleFunc("/token", authHandler.Refresh).Methods("POST", "OPTIONS")
	edit.HandleFunc("", sceneHandler.Delete).Methods("DELETE", "OPTIONS")

	// WebSocket endpoint
	originPatterns := originHosts(cfg.Origins())
	r.HandleFunc("/ws/scene/{sceneId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, sceneService, originPatterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first to save all open scenes
		slog.Info("saving open scenes...")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(pool), nil
	case "sqlite", "":
		return store.OpenSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, scenes *scene.Service, originPatterns []string) {
	sceneID := mux.Vars(r)["sceneId"]

	if _, err := scenes.Get(r.Context(), sceneID); err != nil {
		if errors.Is(err, scene.ErrNotFound) {
			http.Error(w, "scene not found", http.StatusNotFound)
			return
		}
		slog.Error("websocket scene lookup", "scene", sceneID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Without a token the client joins as a viewer
	editable := false
	if token := r.URL.Query().Get("token"); token != "" {
		if err := authSvc.ValidateSceneToken(token, sceneID); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		editable = true
	}

	collab.Serve(hub, w, r, collab.ServeOptions{
		SceneID:        sceneID,
		Editable:       editable,
		DisplayName:    r.URL.Query().Get("name"),
		OriginPatterns: originPatterns,
	})
}

// originHosts turns allowed origins into the host patterns websocket.Accept
// matches against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			hosts = append(hosts, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
