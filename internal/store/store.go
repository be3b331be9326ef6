// Package store persists scenes and versioned snapshots of their documents.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Scene is the stored metadata of an editable scene.
type Scene struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is one saved version of a scene's {elements, duration} document.
type Snapshot struct {
	ID        string    `json:"id"`
	SceneID   string    `json:"sceneId"`
	Version   int       `json:"version"`
	Document  []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is implemented by the Postgres and SQLite backends.
type Store interface {
	CreateScene(ctx context.Context, scene Scene) (*Scene, error)
	GetScene(ctx context.Context, id string) (*Scene, error)
	DeleteScene(ctx context.Context, id string) error
	// SaveSnapshot stores doc as the scene's next version.
	SaveSnapshot(ctx context.Context, sceneID string, doc []byte) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, sceneID string) (*Snapshot, error)
	Close() error
}
