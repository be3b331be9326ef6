package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inamate/rectscene/internal/db"
	"github.com/inamate/rectscene/internal/typeid"
)

// SQLite stores scenes in a local SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the SQLite store at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	conn, err := db.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: conn}, nil
}

func (s *SQLite) CreateScene(ctx context.Context, scene Scene) (*Scene, error) {
	now := time.Now().UTC()
	if scene.ID == "" {
		scene.ID = typeid.NewSceneID()
	}
	scene.CreatedAt, scene.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO scenes (id, name, width, height, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `, scene.ID, scene.Name, scene.Width, scene.Height, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("insert scene: %w", err)
	}
	return &scene, nil
}

func (s *SQLite) GetScene(ctx context.Context, id string) (*Scene, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, name, width, height, created_at, updated_at
        FROM scenes
        WHERE id = ?
    `, id)

	var sc Scene
	var created, updated int64
	if err := row.Scan(&sc.ID, &sc.Name, &sc.Width, &sc.Height, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get scene: %w", err)
	}
	sc.CreatedAt = time.UnixMilli(created).UTC()
	sc.UpdatedAt = time.UnixMilli(updated).UTC()
	return &sc, nil
}

func (s *SQLite) DeleteScene(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE scene_id = ?`, id); err != nil {
		return fmt.Errorf("delete snapshots: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLite) SaveSnapshot(ctx context.Context, sceneID string, doc []byte) (*Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenes WHERE id = ?`, sceneID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check scene: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	var version int
	if err := tx.QueryRowContext(ctx, `
        SELECT COALESCE(MAX(version), 0) + 1 FROM snapshots WHERE scene_id = ?
    `, sceneID).Scan(&version); err != nil {
		return nil, fmt.Errorf("next version: %w", err)
	}

	now := time.Now().UTC()
	snap := &Snapshot{
		ID:        typeid.NewSnapshotID(),
		SceneID:   sceneID,
		Version:   version,
		Document:  doc,
		CreatedAt: now,
	}
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO snapshots (id, scene_id, version, document, created_at)
        VALUES (?, ?, ?, ?, ?)
    `, snap.ID, sceneID, version, string(doc), now.UnixMilli()); err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE scenes SET updated_at = ? WHERE id = ?`, now.UnixMilli(), sceneID); err != nil {
		return nil, fmt.Errorf("touch scene: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return snap, nil
}

func (s *SQLite) LatestSnapshot(ctx context.Context, sceneID string) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, scene_id, version, document, created_at
        FROM snapshots
        WHERE scene_id = ?
        ORDER BY version DESC
        LIMIT 1
    `, sceneID)

	var snap Snapshot
	var doc string
	var created int64
	if err := row.Scan(&snap.ID, &snap.SceneID, &snap.Version, &doc, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	snap.Document = []byte(doc)
	snap.CreatedAt = time.UnixMilli(created).UTC()
	return &snap, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
