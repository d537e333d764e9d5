// Package recordstore defines the capability the engine needs from the
// tabular backend. Three interchangeable implementations live in the
// subpackages: airtable, postgres and sheet.
package recordstore

import (
	"context"
	"errors"

	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

// VideoFilter narrows a catalog scan. Nil fields are unfiltered; setting both
// matches exact level and exact number.
type VideoFilter struct {
	Level       *entities.Level
	VideoNumber *int
}

// ByLevel filters on level only.
func ByLevel(level entities.Level) VideoFilter {
	return VideoFilter{Level: &level}
}

// ByPosition filters on exact (level, video number).
func ByPosition(level entities.Level, videoNumber int) VideoFilter {
	return VideoFilter{Level: &level, VideoNumber: &videoNumber}
}

// Store is the record-store capability. The engine and policies depend only
// on this interface, never on a concrete backend.
type Store interface {
	// FindUser returns the user's persisted progress, or ErrUserNotFound.
	FindUser(ctx context.Context, userID int64) (*entities.UserProgress, error)

	// CreateUser inserts a new user row. When the user already exists the
	// existing row is returned unchanged.
	CreateUser(ctx context.Context, userID int64, level entities.Level, videoNumber int, state entities.State) (*entities.UserProgress, error)

	// UpdateUser writes the user's level, video number and state back.
	UpdateUser(ctx context.Context, user *entities.UserProgress) error

	// ListVideos scans the catalog with the given filter.
	ListVideos(ctx context.Context, filter VideoFilter) ([]*entities.VideoInfo, error)

	// AppendMessage appends one row to the message log and returns its
	// record id. videoRecordID links the message to a lesson and may be empty.
	AppendMessage(ctx context.Context, text string, role entities.Role, videoRecordID string) (string, error)
}
