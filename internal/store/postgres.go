package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inamate/rectscene/internal/typeid"
)

// Postgres stores scenes in Postgres through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a connected pool. Close closes the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) CreateScene(ctx context.Context, scene Scene) (*Scene, error) {
	if scene.ID == "" {
		scene.ID = typeid.NewSceneID()
	}
	err := p.pool.QueryRow(ctx, `
        INSERT INTO scenes (id, name, width, height)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, updated_at
    `, scene.ID, scene.Name, scene.Width, scene.Height).Scan(&scene.CreatedAt, &scene.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert scene: %w", err)
	}
	return &scene, nil
}

func (p *Postgres) GetScene(ctx context.Context, id string) (*Scene, error) {
	var sc Scene
	err := p.pool.QueryRow(ctx, `
        SELECT id, name, width, height, created_at, updated_at
        FROM scenes
        WHERE id = $1
    `, id).Scan(&sc.ID, &sc.Name, &sc.Width, &sc.Height, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return &sc, nil
}

func (p *Postgres) DeleteScene(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM scenes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SaveSnapshot(ctx context.Context, sceneID string, doc []byte) (*Snapshot, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the scene row so concurrent saves get distinct versions.
	var locked string
	if err := tx.QueryRow(ctx, `SELECT id FROM scenes WHERE id = $1 FOR UPDATE`, sceneID).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock scene: %w", err)
	}

	snap := &Snapshot{
		ID:       typeid.NewSnapshotID(),
		SceneID:  sceneID,
		Document: doc,
	}
	err = tx.QueryRow(ctx, `
        INSERT INTO snapshots (id, scene_id, version, document)
        VALUES ($1, $2, (SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE scene_id = $2), $3)
        RETURNING version, created_at
    `, snap.ID, sceneID, doc).Scan(&snap.Version, &snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE scenes SET updated_at = now() WHERE id = $1`, sceneID); err != nil {
		return nil, fmt.Errorf("touch scene: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

func (p *Postgres) LatestSnapshot(ctx context.Context, sceneID string) (*Snapshot, error) {
	var snap Snapshot
	err := p.pool.QueryRow(ctx, `
        SELECT id, scene_id, version, document, created_at
        FROM snapshots
        WHERE scene_id = $1
        ORDER BY version DESC
        LIMIT 1
    `, sceneID).Scan(&snap.ID, &snap.SceneID, &snap.Version, &snap.Document, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &snap, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
