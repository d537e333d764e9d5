package conversation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
)

func video(id string) *entities.VideoInfo {
	return &entities.VideoInfo{
		RecordID:    id,
		Title:       "Title " + id,
		Question:    "Question " + id,
		Level:       entities.LevelBeginner,
		VideoNumber: 1,
	}
}

func TestGetOrCreate_ReusesContextForSameVideo(t *testing.T) {
	s := NewStore()

	c1 := s.GetOrCreate(1, video("recA"))
	s.Append(1, entities.RoleUser, "hello", "")

	c2 := s.GetOrCreate(1, video("recA"))
	require.Same(t, c1, c2)
	assert.Len(t, c2.History(), 1)
}

func TestGetOrCreate_ReplacesContextForDifferentVideo(t *testing.T) {
	s := NewStore()

	s.GetOrCreate(1, video("recA"))
	s.Append(1, entities.RoleUser, "hello", "")

	c := s.GetOrCreate(1, video("recB"))
	assert.Equal(t, "recB", c.VideoRecordID)
	assert.Empty(t, c.History(), "replacing the target video discards the old history")
}

func TestAppend_NoContextIsNoop(t *testing.T) {
	s := NewStore()
	s.Append(42, entities.RoleUser, "orphan", "")
	assert.Nil(t, s.Get(42))
}

func TestSummary_Empty(t *testing.T) {
	s := NewStore()
	assert.Equal(t, "", s.Summary(1), "no context")

	s.Replace(1, video("recA"))
	assert.Equal(t, "", s.Summary(1), "empty history")
}

func TestSummary_SingleMessage(t *testing.T) {
	s := NewStore()
	s.Replace(1, video("recA"))
	s.Append(1, entities.RoleUser, "my answer", "")

	assert.Equal(t, "User: my answer", s.Summary(1))
}

func TestSummary_WindowNeverExceedsFiveLines(t *testing.T) {
	s := NewStore()
	s.Replace(1, video("recA"))

	for i := 0; i < 12; i++ {
		role := entities.RoleUser
		if i%2 == 1 {
			role = entities.RoleAssistant
		}
		s.Append(1, role, fmt.Sprintf("msg %d", i), "")
	}

	lines := strings.Split(s.Summary(1), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Assistant: msg 11", lines[4], "newest last")
	assert.Equal(t, "Assistant: msg 7", lines[0])
}

func TestClear_DropsContextAndSnapshot(t *testing.T) {
	s := NewStore()
	s.Replace(1, video("recA"))
	s.StartReview(1, entities.LevelIntermediate, 2, "recA")

	s.Clear(1)

	assert.Nil(t, s.Get(1))
	_, ok := s.PeekReview(1)
	assert.False(t, ok)
}

func TestReview_ConsumeReturnsAndDeletes(t *testing.T) {
	s := NewStore()
	s.StartReview(1, entities.LevelIntermediate, 2, "recB")

	snap, ok := s.ConsumeReview(1)
	require.True(t, ok)
	assert.Equal(t, entities.LevelIntermediate, snap.OriginalLevel)
	assert.Equal(t, 2, snap.OriginalVideoNumber)
	assert.Equal(t, "recB", snap.ReviewVideoRecordID)

	_, ok = s.ConsumeReview(1)
	assert.False(t, ok, "second consume finds nothing")
}

func TestReview_AtMostOneSnapshotPerUser(t *testing.T) {
	s := NewStore()
	s.StartReview(1, entities.LevelIntermediate, 2, "recB")
	s.StartReview(1, entities.LevelAdvanced, 1, "recC")

	snap, ok := s.PeekReview(1)
	require.True(t, ok)
	assert.Equal(t, entities.LevelAdvanced, snap.OriginalLevel)
	assert.Equal(t, "recC", snap.ReviewVideoRecordID)
}

func TestStore_UsersAreIndependent(t *testing.T) {
	s := NewStore()
	s.Replace(1, video("recA"))
	s.Replace(2, video("recB"))
	s.Append(1, entities.RoleUser, "one", "")

	assert.Len(t, s.Get(1).History(), 1)
	assert.Empty(t, s.Get(2).History())
}
