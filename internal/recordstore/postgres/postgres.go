// Package postgres implements the record store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
	"github.com/mlehnert/videokurs-bot/internal/recordstore"
)

// Store is a PostgreSQL-backed record store.
type Store struct {
	db *pgxpool.Pool
}

// New creates a Store on the provided pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) FindUser(ctx context.Context, userID int64) (*entities.UserProgress, error) {
	query := `
		SELECT id::text, telegram_id, level, video_number, state
		FROM users
		WHERE telegram_id = $1
	`

	var user entities.UserProgress
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&user.RecordID,
		&user.UserID,
		&user.Level,
		&user.VideoNumber,
		&user.State,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, recordstore.ErrUserNotFound
		}

		return nil, fmt.Errorf("find user: %w", err)
	}

	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, userID int64, level entities.Level, videoNumber int, state entities.State) (*entities.UserProgress, error) {
	query := `
		INSERT INTO users (telegram_id, level, video_number, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id) DO NOTHING
	`

	if _, err := s.db.Exec(ctx, query, userID, level, videoNumber, state); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	// Reselect so a lost insert race still returns the winning row.
	return s.FindUser(ctx, userID)
}

func (s *Store) UpdateUser(ctx context.Context, user *entities.UserProgress) error {
	query := `
		UPDATE users
		SET level = $2, video_number = $3, state = $4, updated_at = now()
		WHERE id = $1::uuid
	`

	tag, err := s.db.Exec(ctx, query, user.RecordID, user.Level, user.VideoNumber, user.State)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return recordstore.ErrUserNotFound
	}

	return nil
}

func (s *Store) ListVideos(ctx context.Context, filter recordstore.VideoFilter) ([]*entities.VideoInfo, error) {
	query := `
		SELECT id::text, title, description, question, url, level, video_number, COALESCE(benchmark, '')
		FROM videos
		WHERE ($1::text IS NULL OR level = $1)
		  AND ($2::int IS NULL OR video_number = $2)
		ORDER BY level, video_number
	`

	rows, err := s.db.Query(ctx, query, filter.Level, filter.VideoNumber)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*entities.VideoInfo
	for rows.Next() {
		var v entities.VideoInfo
		err := rows.Scan(
			&v.RecordID,
			&v.Title,
			&v.Description,
			&v.Question,
			&v.URL,
			&v.Level,
			&v.VideoNumber,
			&v.UnderstandingBenchmark,
		)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	return videos, nil
}

func (s *Store) AppendMessage(ctx context.Context, text string, role entities.Role, videoRecordID string) (string, error) {
	query := `
		INSERT INTO messages (role, message, video_id)
		VALUES ($1, $2, NULLIF($3, '')::uuid)
		RETURNING id::text
	`

	var id string
	if err := s.db.QueryRow(ctx, query, role.LogLabel(), text, videoRecordID).Scan(&id); err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}

	return id, nil
}
