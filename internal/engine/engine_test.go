package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mlehnert/videokurs-bot/internal/conversation"
	"github.com/mlehnert/videokurs-bot/internal/course"
	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
	"github.com/mlehnert/videokurs-bot/internal/recordstore"
)

// fakeStore is an in-memory record store. It shares an operation journal
// with fakePresenter so tests can assert reply/write-back ordering.
type fakeStore struct {
	users    map[int64]*entities.UserProgress
	videos   []*entities.VideoInfo
	messages []string
	journal  *[]string
	nextID   int

	findErr   error
	updateErr error
}

func newFakeStore(journal *[]string, videos ...*entities.VideoInfo) *fakeStore {
	return &fakeStore{
		users:   make(map[int64]*entities.UserProgress),
		videos:  videos,
		journal: journal,
	}
}

func (s *fakeStore) FindUser(_ context.Context, userID int64) (*entities.UserProgress, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, recordstore.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) CreateUser(_ context.Context, userID int64, level entities.Level, videoNumber int, state entities.State) (*entities.UserProgress, error) {
	if u, ok := s.users[userID]; ok {
		cp := *u
		return &cp, nil
	}
	u := &entities.UserProgress{
		RecordID:    fmt.Sprintf("user-%d", userID),
		UserID:      userID,
		Level:       level,
		VideoNumber: videoNumber,
		State:       state,
	}
	s.users[userID] = u
	cp := *u
	return &cp, nil
}

func (s *fakeStore) UpdateUser(_ context.Context, user *entities.UserProgress) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	cp := *user
	s.users[user.UserID] = &cp
	*s.journal = append(*s.journal, fmt.Sprintf("update:%s:%d:%s", user.Level, user.VideoNumber, user.State))
	return nil
}

func (s *fakeStore) ListVideos(_ context.Context, filter recordstore.VideoFilter) ([]*entities.VideoInfo, error) {
	var out []*entities.VideoInfo
	for _, v := range s.videos {
		if filter.Level != nil && v.Level != *filter.Level {
			continue
		}
		if filter.VideoNumber != nil && v.VideoNumber != *filter.VideoNumber {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *fakeStore) AppendMessage(_ context.Context, text string, role entities.Role, _ string) (string, error) {
	s.nextID++
	s.messages = append(s.messages, role.LogLabel()+": "+text)
	return fmt.Sprintf("msg-%d", s.nextID), nil
}

type fakeOracle struct {
	placement    entities.Level
	placementErr error
	feedback     string
	assessErr    error
	lastHistory  string
}

func (o *fakeOracle) ClassifyPlacement(_ context.Context, _, _ string) (entities.Level, error) {
	if o.placementErr != nil {
		return "", o.placementErr
	}
	return o.placement, nil
}

func (o *fakeOracle) AssessResponse(_ context.Context, _, _, _, history string) (string, error) {
	o.lastHistory = history
	if o.assessErr != nil {
		return "", o.assessErr
	}
	return o.feedback, nil
}

type sentMessage struct {
	kind string // text, ready, controls, overview
	text string
}

type fakePresenter struct {
	sent    []sentMessage
	lastOv  *course.Overview
	journal *[]string
}

func (p *fakePresenter) record(kind, text string) {
	p.sent = append(p.sent, sentMessage{kind: kind, text: text})
	*p.journal = append(*p.journal, "send:"+kind)
}

func (p *fakePresenter) SendText(_ context.Context, _ int64, text string) error {
	p.record("text", text)
	return nil
}

func (p *fakePresenter) SendReady(_ context.Context, _ int64, text string) error {
	p.record("ready", text)
	return nil
}

func (p *fakePresenter) SendControls(_ context.Context, _ int64, text string) error {
	p.record("controls", text)
	return nil
}

func (p *fakePresenter) SendOverview(_ context.Context, _ int64, text string, ov *course.Overview) error {
	p.lastOv = ov
	p.record("overview", text)
	return nil
}

func (p *fakePresenter) texts() []string {
	var out []string
	for _, m := range p.sent {
		out = append(out, m.text)
	}
	return out
}

func testVideos() []*entities.VideoInfo {
	return []*entities.VideoInfo{
		{RecordID: "entry1", Title: "Willkommen", Description: "Intro", Question: "Erzähl von dir!", Level: entities.LevelEntry, VideoNumber: 1},
		{RecordID: "beg1", Title: "Grundlagen 1", Question: "Frage B1?", URL: "https://v/beg1", Level: entities.LevelBeginner, VideoNumber: 1},
		{RecordID: "beg2", Title: "Grundlagen 2", Question: "Frage B2?", Level: entities.LevelBeginner, VideoNumber: 2},
		{RecordID: "int1", Title: "Mittelstufe 1", Question: "Frage I1?", URL: "https://v/int1", Level: entities.LevelIntermediate, VideoNumber: 1, UnderstandingBenchmark: "bench"},
		{RecordID: "int2", Title: "Mittelstufe 2", Question: "Frage I2?", Level: entities.LevelIntermediate, VideoNumber: 2},
		{RecordID: "adv1", Title: "Fortgeschritten 1", Question: "Frage A1?", Level: entities.LevelAdvanced, VideoNumber: 1},
		{RecordID: "adv2", Title: "Fortgeschritten 2", Question: "Frage A2?", Level: entities.LevelAdvanced, VideoNumber: 2},
	}
}

type fixture struct {
	engine    *Engine
	store     *fakeStore
	oracle    *fakeOracle
	presenter *fakePresenter
	convos    *conversation.Store
	journal   []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{}
	f.store = newFakeStore(&f.journal, testVideos()...)
	f.oracle = &fakeOracle{placement: entities.LevelIntermediate, feedback: "Gut gemacht!"}
	f.presenter = &fakePresenter{journal: &f.journal}
	f.convos = conversation.NewStore()

	f.engine = New(f.store, f.oracle, f.convos, f.presenter, zap.NewNop(), Config{
		VideoWaitTime:     10 * time.Second,
		MaxVideosPerLevel: 2,
	})
	f.engine.sleep = func(time.Duration) {}

	return f
}

func (f *fixture) persisted(userID int64) *entities.UserProgress {
	return f.store.users[userID]
}

func TestHandleStart_NewUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleStart(ctx, 1))

	user := f.persisted(1)
	require.NotNil(t, user)
	assert.Equal(t, entities.LevelEntry, user.Level)
	assert.Equal(t, 0, user.VideoNumber)
	assert.Equal(t, entities.StatePlacementTest, user.State)

	texts := f.presenter.texts()
	require.Len(t, texts, 3, "welcome title, description, question")
	assert.Equal(t, "Willkommen", texts[0])
	assert.Equal(t, "Erzähl von dir!", texts[2])
}

func TestHandleStart_ExistingUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleStart(ctx, 1))
	f.presenter.sent = nil

	require.NoError(t, f.engine.HandleStart(ctx, 1))
	texts := f.presenter.texts()
	require.Len(t, texts, 1)
	assert.Equal(t, msgAlreadyRegistered, texts[0])
}

func TestHandleText_NoUser(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.HandleText(context.Background(), 99, "hallo"))
	assert.Equal(t, []string{msgStartBotFirst}, f.presenter.texts())
}

func TestPlacement_AssignsLevelAndReadyAffordance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleStart(ctx, 1))
	require.NoError(t, f.engine.HandleText(ctx, 1, "Ich habe viel Erfahrung."))

	user := f.persisted(1)
	assert.Equal(t, entities.LevelIntermediate, user.Level)
	assert.Equal(t, 1, user.VideoNumber)
	assert.Equal(t, entities.StateShowingVideo, user.State)

	last := f.presenter.sent[len(f.presenter.sent)-1]
	assert.Equal(t, "ready", last.kind)
	assert.Equal(t, msgPlacementDone, last.text)
}

func TestPlacement_OracleFailureFallsBackToRandomLevel(t *testing.T) {
	f := newFixture(t)
	f.oracle.placementErr = errors.New("oracle down")
	ctx := context.Background()

	require.NoError(t, f.engine.HandleStart(ctx, 1))
	require.NoError(t, f.engine.HandleText(ctx, 1, "antwort"))

	user := f.persisted(1)
	assert.Contains(t, []entities.Level{
		entities.LevelBeginner,
		entities.LevelIntermediate,
		entities.LevelAdvanced,
	}, user.Level)
	assert.Equal(t, entities.StateShowingVideo, user.State)
}

func TestPlacement_WriteBackHappensAfterReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleStart(ctx, 1))
	f.journal = nil

	require.NoError(t, f.engine.HandleText(ctx, 1, "antwort"))

	sendIdx, updateIdx := -1, -1
	for i, op := range f.journal {
		if strings.HasPrefix(op, "send:ready") && sendIdx == -1 {
			sendIdx = i
		}
		if strings.HasPrefix(op, "update:") && updateIdx == -1 {
			updateIdx = i
		}
	}
	require.NotEqual(t, -1, sendIdx)
	require.NotEqual(t, -1, updateIdx)
	assert.Less(t, sendIdx, updateIdx, "reply is sent before the persisted write-back")
}

// placeUser fast-forwards a registered user to a known position.
func placeUser(t *testing.T, f *fixture, userID int64, level entities.Level, number int, state entities.State) {
	t.Helper()

	_, err := f.store.CreateUser(context.Background(), userID, level, number, state)
	require.NoError(t, err)
	u := f.store.users[userID]
	u.Level = level
	u.VideoNumber = number
	u.State = state
}

func TestEndToEnd_NewUserThroughFirstLesson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// /start registers and runs the placement script.
	require.NoError(t, f.engine.HandleStart(ctx, 1))
	assert.Equal(t, entities.StatePlacementTest, f.persisted(1).State)

	// Placement answer assigns a level.
	require.NoError(t, f.engine.HandleText(ctx, 1, "meine antwort"))
	assert.Equal(t, entities.StateShowingVideo, f.persisted(1).State)
	assert.Equal(t, 1, f.persisted(1).VideoNumber)

	// Ready: the lesson script presents and self-transitions.
	f.presenter.sent = nil
	require.NoError(t, f.engine.HandleReady(ctx, 1))
	assert.Equal(t, entities.StateWaitingForResponse, f.persisted(1).State)

	texts := f.presenter.texts()
	require.Len(t, texts, 3, "lesson intro, url, question")
	assert.Contains(t, texts[0], "Mittelstufe 1")
	assert.Contains(t, texts[1], "https://v/int1")
	assert.Contains(t, texts[2], "Frage I1?")

	// Answer: feedback arrives, state moves to chat mode, context holds both sides.
	f.presenter.sent = nil
	require.NoError(t, f.engine.HandleText(ctx, 1, "ich habe verstanden dass..."))
	assert.Equal(t, entities.StateChatMode, f.persisted(1).State)

	c := f.convos.Get(1)
	require.NotNil(t, c)
	assert.Equal(t, "int1", c.VideoRecordID)
	require.Len(t, c.History(), 2)
	assert.Equal(t, entities.RoleUser, c.History()[0].Role)
	assert.Equal(t, entities.RoleAssistant, c.History()[1].Role)
	assert.Equal(t, "controls", f.presenter.sent[0].kind)
	assert.Equal(t, "💭 Gut gemacht!", f.presenter.sent[0].text)

	// Understood without a snapshot advances and re-enters the lesson script.
	f.presenter.sent = nil
	require.NoError(t, f.engine.HandleUnderstood(ctx, 1))

	user := f.persisted(1)
	assert.Equal(t, entities.LevelIntermediate, user.Level)
	assert.Equal(t, 2, user.VideoNumber)
	assert.Equal(t, entities.StateWaitingForResponse, user.State, "enter-and-present self-transitions")
	assert.Equal(t, "int2", f.convos.Get(1).VideoRecordID, "fresh context for the new lesson")
}

func TestChatMode_KeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelIntermediate, 1, entities.StateChatMode)
	f.convos.Replace(1, testVideos()[3])

	require.NoError(t, f.engine.HandleText(ctx, 1, "noch eine frage"))

	assert.Equal(t, entities.StateChatMode, f.persisted(1).State)
	assert.NotEmpty(t, f.oracle.lastHistory, "assessment is conditioned on the dialogue")
}

func TestAnswer_OracleFailureFallsBackToAcknowledgement(t *testing.T) {
	f := newFixture(t)
	f.oracle.assessErr = errors.New("oracle down")
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelIntermediate, 1, entities.StateWaitingForResponse)

	require.NoError(t, f.engine.HandleText(ctx, 1, "meine antwort"))

	assert.Equal(t, entities.StateChatMode, f.persisted(1).State, "transition survives the failure")
	last := f.presenter.sent[len(f.presenter.sent)-1]
	assert.Equal(t, msgThanksForAnswer("meine antwort"), last.text)
}

func TestShowingVideo_TextGetsProcessingNotice(t *testing.T) {
	f := newFixture(t)
	placeUser(t, f, 1, entities.LevelBeginner, 1, entities.StateShowingVideo)

	require.NoError(t, f.engine.HandleText(context.Background(), 1, "hallo?"))
	assert.Equal(t, []string{msgVideoProcessing}, f.presenter.texts())
}

func TestLevelUp_CongratulatesBeforeNextLesson(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelBeginner, 2, entities.StateChatMode)

	require.NoError(t, f.engine.HandleUnderstood(ctx, 1))

	user := f.persisted(1)
	assert.Equal(t, entities.LevelIntermediate, user.Level)
	assert.Equal(t, 1, user.VideoNumber)

	texts := f.presenter.texts()
	require.GreaterOrEqual(t, len(texts), 2)
	assert.Equal(t, msgNextVideoStart, texts[0])
	assert.Equal(t, msgCongratulations("Intermediate"), texts[1])
}

func TestAdvance_CeilingAtAdvanced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelAdvanced, 2, entities.StateChatMode)

	require.NoError(t, f.engine.HandleAdvance(ctx, 1))

	user := f.persisted(1)
	assert.Equal(t, entities.LevelAdvanced, user.Level)
	assert.Equal(t, 1, user.VideoNumber)
}

func TestReview_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelIntermediate, 2, entities.StateChatMode)

	// Select an earlier lesson for review.
	require.NoError(t, f.engine.HandleLessonSelect(ctx, 1, "beg1", true))

	snap, ok := f.convos.PeekReview(1)
	require.True(t, ok)
	assert.Equal(t, entities.LevelIntermediate, snap.OriginalLevel)
	assert.Equal(t, 2, snap.OriginalVideoNumber)
	assert.Equal(t, "beg1", snap.ReviewVideoRecordID)

	// The review lesson is temporarily active.
	user := f.persisted(1)
	assert.Equal(t, entities.LevelBeginner, user.Level)
	assert.Equal(t, 1, user.VideoNumber)
	assert.Equal(t, "beg1", f.convos.Get(1).VideoRecordID)

	// Understood restores the true position and deletes the snapshot.
	f.presenter.sent = nil
	require.NoError(t, f.engine.HandleUnderstood(ctx, 1))

	user = f.persisted(1)
	assert.Equal(t, entities.LevelIntermediate, user.Level)
	assert.Equal(t, 2, user.VideoNumber)
	assert.Equal(t, entities.StateChatMode, user.State)

	_, ok = f.convos.PeekReview(1)
	assert.False(t, ok)
	assert.Contains(t, f.presenter.texts()[0], "Wiederholung beendet!")

	// A second understood has no snapshot and advances instead.
	require.NoError(t, f.engine.HandleUnderstood(ctx, 1))
	user = f.persisted(1)
	assert.Equal(t, entities.LevelAdvanced, user.Level)
	assert.Equal(t, 1, user.VideoNumber)
}

func TestLessonSelect_NonReviewJumpPersistsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelIntermediate, 1, entities.StateCourseOverview)

	require.NoError(t, f.engine.HandleLessonSelect(ctx, 1, "int1", false))

	_, ok := f.convos.PeekReview(1)
	assert.False(t, ok, "no snapshot for a non-review jump")
	assert.Equal(t, entities.StateWaitingForResponse, f.persisted(1).State)
}

func TestLessonSelect_UnknownVideo(t *testing.T) {
	f := newFixture(t)
	placeUser(t, f, 1, entities.LevelIntermediate, 1, entities.StateCourseOverview)

	require.NoError(t, f.engine.HandleLessonSelect(context.Background(), 1, "nope", true))
	assert.Equal(t, []string{msgVideoNotFound}, f.presenter.texts())

	_, ok := f.convos.PeekReview(1)
	assert.False(t, ok, "failed selection leaves no snapshot")
}

func TestOverview_ProjectsAndSwitchesState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelIntermediate, 2, entities.StateChatMode)

	require.NoError(t, f.engine.HandleOverview(ctx, 1))

	assert.Equal(t, entities.StateCourseOverview, f.persisted(1).State)
	require.NotNil(t, f.presenter.lastOv)

	last := f.presenter.sent[len(f.presenter.sent)-1]
	assert.Equal(t, "overview", last.kind)
	assert.Contains(t, last.text, "Kursübersicht")
	assert.Contains(t, last.text, "Gesamtfortschritt")

	// Free text while the overview is open gets the navigation reply.
	f.presenter.sent = nil
	require.NoError(t, f.engine.HandleText(ctx, 1, "wie geht es weiter?"))
	assert.Equal(t, []string{msgOverviewChat}, f.presenter.texts())
}

func TestOverview_RenderIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelIntermediate, 2, entities.StateChatMode)

	require.NoError(t, f.engine.HandleOverview(ctx, 1))
	first := f.presenter.sent[len(f.presenter.sent)-1].text

	placeUser(t, f, 1, entities.LevelIntermediate, 2, entities.StateChatMode)
	require.NoError(t, f.engine.HandleOverview(ctx, 1))
	second := f.presenter.sent[len(f.presenter.sent)-1].text

	assert.Equal(t, first, second)
}

func TestUnderstood_DuringPlacementIsScoredAsAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleStart(ctx, 1))
	f.presenter.sent = nil

	// The phrase is not a control signal yet; it is the placement answer.
	require.NoError(t, f.engine.HandleUnderstood(ctx, 1))

	user := f.persisted(1)
	assert.Equal(t, entities.LevelIntermediate, user.Level, "placement ran on the phrase")
	assert.Equal(t, 1, user.VideoNumber)
	assert.Equal(t, entities.StateShowingVideo, user.State)

	last := f.presenter.sent[len(f.presenter.sent)-1]
	assert.Equal(t, "ready", last.kind)
	assert.NotContains(t, f.presenter.texts(), msgNextVideoStart, "no advance happened")
	assert.Contains(t, f.store.messages, "User: "+logUnderstoodPressed)
}

func TestUnderstood_FromOverviewIsChatInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelIntermediate, 1, entities.StateCourseOverview)

	require.NoError(t, f.engine.HandleUnderstood(ctx, 1))

	user := f.persisted(1)
	assert.Equal(t, entities.LevelIntermediate, user.Level)
	assert.Equal(t, 1, user.VideoNumber, "position is unchanged")
	assert.Equal(t, entities.StateCourseOverview, user.State)
	assert.Equal(t, []string{msgOverviewChat}, f.presenter.texts())
}

func TestUnderstood_WhileVideoShowingIsProcessingNotice(t *testing.T) {
	f := newFixture(t)
	placeUser(t, f, 1, entities.LevelBeginner, 1, entities.StateShowingVideo)

	require.NoError(t, f.engine.HandleUnderstood(context.Background(), 1))

	assert.Equal(t, []string{msgVideoProcessing}, f.presenter.texts())
	user := f.persisted(1)
	assert.Equal(t, 1, user.VideoNumber)
	assert.Equal(t, entities.StateShowingVideo, user.State)
}

func TestOverview_DuringPlacementIsScoredAsAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.HandleStart(ctx, 1))
	f.presenter.sent = nil

	require.NoError(t, f.engine.HandleOverview(ctx, 1))

	user := f.persisted(1)
	assert.Equal(t, entities.LevelIntermediate, user.Level)
	assert.Equal(t, entities.StateShowingVideo, user.State, "placement ran, no overview opened")
	assert.Nil(t, f.presenter.lastOv)
}

func TestLessonSelect_WithoutSnapshotUnderstoodAdvancesFromJump(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	placeUser(t, f, 1, entities.LevelBeginner, 1, entities.StateCourseOverview)

	require.NoError(t, f.engine.HandleLessonSelect(ctx, 1, "beg1", false))
	require.NoError(t, f.engine.HandleUnderstood(ctx, 1))

	user := f.persisted(1)
	assert.Equal(t, entities.LevelBeginner, user.Level)
	assert.Equal(t, 2, user.VideoNumber)
}
