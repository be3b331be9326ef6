package scene

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/inamate/rectscene/internal/document"
	"github.com/inamate/rectscene/internal/store"
	"github.com/inamate/rectscene/internal/typeid"
)

var (
	ErrNotFound        = errors.New("scene not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrInvalidDocument = errors.New("invalid document")
)

// MaxCanvasSize bounds each canvas dimension.
const MaxCanvasSize = 8192

// LiveRooms is the view of open realtime rooms the service needs.
type LiveRooms interface {
	Document(sceneID string) (*document.SceneData, bool)
	Reload(sceneID string, data *document.SceneData) bool
	CloseRoom(sceneID string, reason string) bool
}

type Service struct {
	store         store.Store
	live          LiveRooms
	defaultWidth  int
	defaultHeight int
}

func NewService(st store.Store, defaultWidth, defaultHeight int) *Service {
	return &Service{
		store:         st,
		defaultWidth:  defaultWidth,
		defaultHeight: defaultHeight,
	}
}

// SetLive connects the service to the realtime hub. Rooms are consulted for
// reads and told about imports and deletes.
func (s *Service) SetLive(live LiveRooms) {
	s.live = live
}

type CreateParams struct {
	Name   string
	Width  int
	Height int
	// Sample seeds the scene with the demo elements instead of an empty list.
	Sample bool
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*store.Scene, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if p.Width == 0 {
		p.Width = s.defaultWidth
	}
	if p.Height == 0 {
		p.Height = s.defaultHeight
	}
	if p.Width < 1 || p.Height < 1 || p.Width > MaxCanvasSize || p.Height > MaxCanvasSize {
		return nil, fmt.Errorf("%w: canvas size must be between 1 and %d", ErrInvalidRequest, MaxCanvasSize)
	}

	sc, err := s.store.CreateScene(ctx, store.Scene{Name: name, Width: p.Width, Height: p.Height})
	if err != nil {
		return nil, fmt.Errorf("create scene: %w", err)
	}

	seed := document.NewEmptyScene()
	if p.Sample {
		seed = document.NewSampleScene()
	}
	if err := s.save(ctx, sc.ID, seed); err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}
	return sc, nil
}

func (s *Service) Get(ctx context.Context, sceneID string) (*store.Scene, error) {
	if err := typeid.Validate(sceneID, typeid.PrefixScene); err != nil {
		return nil, ErrNotFound
	}
	sc, err := s.store.GetScene(ctx, sceneID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return sc, nil
}

// Document returns the scene's current {elements, duration}: the live room's
// state when one is open, else the latest snapshot. A scene that has never
// been saved reads as empty.
func (s *Service) Document(ctx context.Context, sceneID string) (*document.SceneData, error) {
	if _, err := s.Get(ctx, sceneID); err != nil {
		return nil, err
	}
	if s.live != nil {
		if data, ok := s.live.Document(sceneID); ok {
			return data, nil
		}
	}

	snap, err := s.store.LatestSnapshot(ctx, sceneID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return document.NewEmptyScene(), nil
		}
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	data, err := document.Decode(snap.Document)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", snap.ID, err)
	}
	return data, nil
}

// Import validates raw scene JSON, stores it and reloads any open room.
// Invalid input changes nothing.
func (s *Service) Import(ctx context.Context, sceneID string, raw []byte) (*document.SceneData, error) {
	data, err := document.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if _, err := s.Get(ctx, sceneID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, sceneID, data); err != nil {
		return nil, err
	}
	if s.live != nil {
		s.live.Reload(sceneID, data)
	}
	return data, nil
}

// SaveDocument stores data as the scene's next snapshot.
func (s *Service) SaveDocument(ctx context.Context, sceneID string, data *document.SceneData) error {
	return s.save(ctx, sceneID, data)
}

func (s *Service) Delete(ctx context.Context, sceneID string) error {
	if s.live != nil {
		s.live.CloseRoom(sceneID, "scene deleted")
	}
	if err := s.store.DeleteScene(ctx, sceneID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete scene: %w", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, sceneID string, data *document.SceneData) error {
	raw, err := document.Encode(data)
	if err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	if _, err := s.store.SaveSnapshot(ctx, sceneID, raw); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
