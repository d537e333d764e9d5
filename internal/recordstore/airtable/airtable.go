// Package airtable implements the record store on an Airtable base with
// Users, Videos and Messages tables.
package airtable

import (
	"context"
	"fmt"

	"github.com/mehanizm/airtable"

	"github.com/mlehnert/videokurs-bot/internal/config"
	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
	"github.com/mlehnert/videokurs-bot/internal/recordstore"
)

// Airtable field names. The catalog historically carried the video number
// under two spellings, so reads fall back from one to the other.
const (
	fieldTelegramID  = "Telegram ID"
	fieldLevel       = "Level"
	fieldVideoNumber = "Video Number"
	fieldVideoNumAlt = "# Video Number"
	fieldState       = "State"
	fieldTitle       = "Title"
	fieldDescription = "Description"
	fieldQuestion    = "Question"
	fieldURL         = "YouTube Link"
	fieldBenchmark   = "Understanding Benchmark"
	fieldRole        = "Role"
	fieldMessage     = "Message"
)

// Store is an Airtable-backed record store.
type Store struct {
	users    *airtable.Table
	videos   *airtable.Table
	messages *airtable.Table
}

// New creates a Store for the configured base and tables.
func New(cfg config.Airtable) *Store {
	client := airtable.NewClient(cfg.APIKey)

	return &Store{
		users:    client.GetTable(cfg.BaseID, cfg.UsersTable),
		videos:   client.GetTable(cfg.BaseID, cfg.VideosTable),
		messages: client.GetTable(cfg.BaseID, cfg.MessagesTable),
	}
}

func (s *Store) FindUser(ctx context.Context, userID int64) (*entities.UserProgress, error) {
	result, err := s.users.GetRecords().
		WithFilterFormula(fmt.Sprintf("{%s}=%d", fieldTelegramID, userID)).
		MaxRecords(1).
		Do()
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	if len(result.Records) == 0 {
		return nil, recordstore.ErrUserNotFound
	}

	return userFromRecord(result.Records[0]), nil
}

func (s *Store) CreateUser(ctx context.Context, userID int64, level entities.Level, videoNumber int, state entities.State) (*entities.UserProgress, error) {
	existing, err := s.FindUser(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if err != recordstore.ErrUserNotFound {
		return nil, err
	}

	created, err := s.users.AddRecords(&airtable.Records{
		Records: []*airtable.Record{{
			Fields: map[string]any{
				fieldTelegramID:  userID,
				fieldLevel:       string(level),
				fieldVideoNumber: videoNumber,
				fieldState:       string(state),
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if len(created.Records) == 0 {
		return nil, fmt.Errorf("create user: empty response")
	}

	return userFromRecord(created.Records[0]), nil
}

func (s *Store) UpdateUser(ctx context.Context, user *entities.UserProgress) error {
	// Partial update: computed columns (Created At etc.) stay untouched.
	_, err := s.users.UpdateRecordsPartial(&airtable.Records{
		Records: []*airtable.Record{{
			ID: user.RecordID,
			Fields: map[string]any{
				fieldLevel:       string(user.Level),
				fieldVideoNumber: user.VideoNumber,
				fieldState:       string(user.State),
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

func (s *Store) ListVideos(ctx context.Context, filter recordstore.VideoFilter) ([]*entities.VideoInfo, error) {
	cfg := s.videos.GetRecords()

	switch {
	case filter.Level != nil && filter.VideoNumber != nil:
		cfg = cfg.WithFilterFormula(fmt.Sprintf(
			"AND({%s}='%s', OR({%s}=%d, {%s}=%d))",
			fieldLevel, *filter.Level,
			fieldVideoNumber, *filter.VideoNumber,
			fieldVideoNumAlt, *filter.VideoNumber,
		))
	case filter.Level != nil:
		cfg = cfg.WithFilterFormula(fmt.Sprintf("{%s}='%s'", fieldLevel, *filter.Level))
	}

	var videos []*entities.VideoInfo
	offset := ""
	for {
		page := cfg
		if offset != "" {
			page = page.WithOffset(offset)
		}

		result, err := page.Do()
		if err != nil {
			return nil, fmt.Errorf("list videos: %w", err)
		}

		for _, rec := range result.Records {
			videos = append(videos, videoFromRecord(rec))
		}

		if result.Offset == "" {
			break
		}
		offset = result.Offset
	}

	return videos, nil
}

func (s *Store) AppendMessage(ctx context.Context, text string, role entities.Role, videoRecordID string) (string, error) {
	fields := map[string]any{
		fieldRole:    role.LogLabel(),
		fieldMessage: text,
	}
	if videoRecordID != "" {
		// Linked-record columns take a list of record ids.
		fields["Video"] = []string{videoRecordID}
	}

	created, err := s.messages.AddRecords(&airtable.Records{
		Records: []*airtable.Record{{Fields: fields}},
	})
	if err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}
	if len(created.Records) == 0 {
		return "", fmt.Errorf("append message: empty response")
	}

	return created.Records[0].ID, nil
}

func userFromRecord(rec *airtable.Record) *entities.UserProgress {
	return &entities.UserProgress{
		RecordID:    rec.ID,
		UserID:      intField(rec.Fields, fieldTelegramID),
		Level:       entities.Level(stringField(rec.Fields, fieldLevel)),
		VideoNumber: int(intField(rec.Fields, fieldVideoNumber)),
		State:       entities.State(stringField(rec.Fields, fieldState)),
	}
}

func videoFromRecord(rec *airtable.Record) *entities.VideoInfo {
	number := intField(rec.Fields, fieldVideoNumber)
	if number == 0 {
		number = intField(rec.Fields, fieldVideoNumAlt)
	}

	return &entities.VideoInfo{
		RecordID:               rec.ID,
		Title:                  stringField(rec.Fields, fieldTitle),
		Description:            stringField(rec.Fields, fieldDescription),
		Question:               stringField(rec.Fields, fieldQuestion),
		URL:                    stringField(rec.Fields, fieldURL),
		Level:                  entities.Level(stringField(rec.Fields, fieldLevel)),
		VideoNumber:            int(number),
		UnderstandingBenchmark: stringField(rec.Fields, fieldBenchmark),
	}
}

func stringField(fields map[string]any, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// intField reads a numeric field; Airtable numbers decode as float64.
func intField(fields map[string]any, name string) int64 {
	switch v := fields[name].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
