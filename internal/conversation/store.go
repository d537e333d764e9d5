package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
)

// summaryWindow is how many trailing messages condition the assessment.
const summaryWindow = 5

// Context is the rolling dialogue for one user within one video. A user has at
// most one live Context; switching videos replaces it entirely.
type Context struct {
	VideoRecordID          string
	VideoTitle             string
	VideoQuestion          string
	UnderstandingBenchmark string
	CreatedAt              time.Time

	history []entities.ConversationMessage
}

// History returns a copy of the recorded messages in insertion order.
func (c *Context) History() []entities.ConversationMessage {
	out := make([]entities.ConversationMessage, len(c.history))
	copy(out, c.history)
	return out
}

// Snapshot is the saved true position of a user who branched into a review.
type Snapshot struct {
	OriginalLevel       entities.Level
	OriginalVideoNumber int
	ReviewVideoRecordID string
}

// Store owns the per-user conversation contexts and review snapshots for the
// lifetime of the process. Nothing here is persisted; both maps are rebuilt
// from the record store's position fields after a restart. Safe for use by
// concurrent handlers of different users.
type Store struct {
	mu        sync.RWMutex
	contexts  map[int64]*Context
	snapshots map[int64]Snapshot
	now       func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		contexts:  make(map[int64]*Context),
		snapshots: make(map[int64]Snapshot),
		now:       time.Now,
	}
}

func newContext(video *entities.VideoInfo, now time.Time) *Context {
	return &Context{
		VideoRecordID:          video.RecordID,
		VideoTitle:             video.Title,
		VideoQuestion:          video.Question,
		UnderstandingBenchmark: video.UnderstandingBenchmark,
		CreatedAt:              now,
	}
}

// GetOrCreate returns the user's context if it already targets video,
// otherwise replaces it with a fresh empty-history context bound to video.
func (s *Store) GetOrCreate(userID int64, video *entities.VideoInfo) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.contexts[userID]; ok && c.VideoRecordID == video.RecordID {
		return c
	}

	c := newContext(video, s.now())
	s.contexts[userID] = c
	return c
}

// Replace unconditionally discards any prior context and binds a fresh one to video.
func (s *Store) Replace(userID int64, video *entities.VideoInfo) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := newContext(video, s.now())
	s.contexts[userID] = c
	return c
}

// Get returns the user's current context, or nil.
func (s *Store) Get(userID int64) *Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contexts[userID]
}

// Append records a message in the user's context. It is a no-op when the user
// has no context; the transition table always creates one first.
func (s *Store) Append(userID int64, role entities.Role, content, externalID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[userID]
	if !ok {
		return
	}

	c.history = append(c.history, entities.ConversationMessage{
		Role:       role,
		Content:    content,
		Timestamp:  s.now(),
		ExternalID: externalID,
	})
}

// Summary renders the last messages as "<Role>: <content>" lines, newest last.
// It returns an empty string when the user has no context or no history.
func (s *Store) Summary(userID int64) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[userID]
	if !ok || len(c.history) == 0 {
		return ""
	}

	start := len(c.history) - summaryWindow
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, summaryWindow)
	for _, m := range c.history[start:] {
		label := "User"
		if m.Role == entities.RoleAssistant {
			label = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, m.Content))
	}

	return strings.Join(lines, "\n")
}

// Clear drops the user's conversation context and review snapshot. Invoked
// when the user's record disappears upstream, so no decision is made from
// stale in-memory state after the identity is reused.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, userID)
	delete(s.snapshots, userID)
}

// StartReview saves the user's true position before a review. Never more than
// one snapshot per user; a second review selection overwrites the first.
func (s *Store) StartReview(userID int64, level entities.Level, videoNumber int, reviewVideoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[userID] = Snapshot{
		OriginalLevel:       level,
		OriginalVideoNumber: videoNumber,
		ReviewVideoRecordID: reviewVideoID,
	}
}

// PeekReview returns the user's snapshot without consuming it.
func (s *Store) PeekReview(userID int64) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[userID]
	return snap, ok
}

// ConsumeReview returns and deletes the user's snapshot atomically.
func (s *Store) ConsumeReview(userID int64) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[userID]
	if ok {
		delete(s.snapshots, userID)
	}
	return snap, ok
}
