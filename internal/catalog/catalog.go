// Package catalog is the read-only playlist collaborator: validated song
// records land here through the import pipeline, and the session coordinator
// only ever asks for a playlist's song population.
package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ntrung/songclash/internal/errors"
)

type Config struct {
	DB *pgxpool.Pool
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	return &Service{db: c.DB}
}

// SongCount returns the number of songs in the playlist.
func (s *Service) SongCount(ctx context.Context, playlistID string) (int, error) {
	if err := s.checkPlaylist(ctx, playlistID); err != nil {
		return 0, err
	}

	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM songs WHERE playlist_id = $1;`, playlistID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count songs: %w", err)
	}

	return n, nil
}

// SongIDs returns the set of song IDs in the playlist.
func (s *Service) SongIDs(ctx context.Context, playlistID string) (map[string]struct{}, error) {
	if err := s.checkPlaylist(ctx, playlistID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT song_id FROM songs WHERE playlist_id = $1;`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}

	ids, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (string, error) {
		var id string
		err := r.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (s *Service) checkPlaylist(ctx context.Context, playlistID string) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM playlists WHERE playlist_id = $1);`, playlistID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check playlist: %w", err)
	}
	if !exists {
		return errors.New(errors.CodeNotFound,
			errors.WithMessagef("playlist %s not found", playlistID))
	}
	return nil
}
