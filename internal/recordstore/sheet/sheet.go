// Package sheet implements the record store on a local .xlsx workbook with
// Users, Videos and Messages sheets. Meant for small courses and local runs;
// every write saves the workbook.
package sheet

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
	"github.com/mlehnert/videokurs-bot/internal/recordstore"
)

const (
	sheetUsers    = "Users"
	sheetVideos   = "Videos"
	sheetMessages = "Messages"
)

var (
	usersHeader    = []string{"ID", "Telegram ID", "Level", "Video Number", "State"}
	videosHeader   = []string{"ID", "Title", "Description", "Question", "URL", "Level", "Video Number", "Benchmark"}
	messagesHeader = []string{"ID", "Role", "Message", "Video ID", "Created At"}
)

// Store is a spreadsheet-backed record store. A single mutex serializes all
// workbook access; excelize files are not safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	file *excelize.File
}

// Open loads the workbook at path, creating it with empty sheets when absent.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f := excelize.NewFile()
		for sheet, header := range map[string][]string{
			sheetUsers:    usersHeader,
			sheetVideos:   videosHeader,
			sheetMessages: messagesHeader,
		} {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, fmt.Errorf("create sheet %s: %w", sheet, err)
			}
			for i, name := range header {
				cell, _ := excelize.CoordinatesToCellName(i+1, 1)
				if err := f.SetCellValue(sheet, cell, name); err != nil {
					return nil, fmt.Errorf("write header %s: %w", sheet, err)
				}
			}
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("drop default sheet: %w", err)
		}
		if err := f.SaveAs(path); err != nil {
			return nil, fmt.Errorf("save workbook: %w", err)
		}

		return &Store{path: path, file: f}, nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	return &Store{path: path, file: f}, nil
}

// Close releases the workbook.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *Store) FindUser(ctx context.Context, userID int64) (*entities.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, _, err := s.findUserRow(userID)
	if err != nil {
		return nil, err
	}

	return user, nil
}

// findUserRow returns the user and their 1-based workbook row. Callers hold s.mu.
func (s *Store) findUserRow(userID int64) (*entities.UserProgress, int, error) {
	rows, err := s.file.GetRows(sheetUsers)
	if err != nil {
		return nil, 0, fmt.Errorf("read users sheet: %w", err)
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if cell(row, 1) != strconv.FormatInt(userID, 10) {
			continue
		}

		return &entities.UserProgress{
			RecordID:    cell(row, 0),
			UserID:      userID,
			Level:       entities.Level(cell(row, 2)),
			VideoNumber: atoi(cell(row, 3)),
			State:       entities.State(cell(row, 4)),
		}, i + 1, nil
	}

	return nil, 0, recordstore.ErrUserNotFound
}

func (s *Store) CreateUser(ctx context.Context, userID int64, level entities.Level, videoNumber int, state entities.State) (*entities.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, _, err := s.findUserRow(userID)
	if err == nil {
		return existing, nil
	}
	if err != recordstore.ErrUserNotFound {
		return nil, err
	}

	user := &entities.UserProgress{
		RecordID:    uuid.NewString(),
		UserID:      userID,
		Level:       level,
		VideoNumber: videoNumber,
		State:       state,
	}

	row := []any{user.RecordID, userID, string(level), videoNumber, string(state)}
	if err := s.appendRow(sheetUsers, row); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *entities.UserProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, rowIndex, err := s.findUserRow(user.UserID)
	if err != nil {
		return err
	}

	values := []any{user.RecordID, user.UserID, string(user.Level), user.VideoNumber, string(user.State)}
	for i, v := range values {
		cellName, _ := excelize.CoordinatesToCellName(i+1, rowIndex)
		if err := s.file.SetCellValue(sheetUsers, cellName, v); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
	}

	if err := s.file.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	return nil
}

func (s *Store) ListVideos(ctx context.Context, filter recordstore.VideoFilter) ([]*entities.VideoInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.file.GetRows(sheetVideos)
	if err != nil {
		return nil, fmt.Errorf("read videos sheet: %w", err)
	}

	var videos []*entities.VideoInfo
	for i, row := range rows {
		if i == 0 {
			continue
		}

		v := &entities.VideoInfo{
			RecordID:               cell(row, 0),
			Title:                  cell(row, 1),
			Description:            cell(row, 2),
			Question:               cell(row, 3),
			URL:                    cell(row, 4),
			Level:                  entities.Level(cell(row, 5)),
			VideoNumber:            atoi(cell(row, 6)),
			UnderstandingBenchmark: cell(row, 7),
		}

		if filter.Level != nil && v.Level != *filter.Level {
			continue
		}
		if filter.VideoNumber != nil && v.VideoNumber != *filter.VideoNumber {
			continue
		}

		videos = append(videos, v)
	}

	return videos, nil
}

func (s *Store) AppendMessage(ctx context.Context, text string, role entities.Role, videoRecordID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	row := []any{id, role.LogLabel(), text, videoRecordID, time.Now().UTC().Format(time.RFC3339)}
	if err := s.appendRow(sheetMessages, row); err != nil {
		return "", fmt.Errorf("append message: %w", err)
	}

	return id, nil
}

// appendRow writes values to the first empty row and saves. Callers hold s.mu.
func (s *Store) appendRow(sheet string, values []any) error {
	rows, err := s.file.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	rowIndex := len(rows) + 1
	for i, v := range values {
		cellName, _ := excelize.CoordinatesToCellName(i+1, rowIndex)
		if err := s.file.SetCellValue(sheet, cellName, v); err != nil {
			return fmt.Errorf("write cell: %w", err)
		}
	}

	if err := s.file.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	return nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
