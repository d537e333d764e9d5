// Package engine contains the per-user conversation/progress state machine.
// It consumes inbound events, consults the record store and assessment
// oracle, mutates the in-memory conversation and review stores, and emits
// presentation instructions. It never renders UI itself.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mlehnert/videokurs-bot/internal/cache"
	"github.com/mlehnert/videokurs-bot/internal/conversation"
	"github.com/mlehnert/videokurs-bot/internal/course"
	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
	"github.com/mlehnert/videokurs-bot/internal/recordstore"
)

// Presenter renders replies to the end user. The engine decides what to say
// and which discrete choices to offer; the implementation decides how they
// are drawn.
type Presenter interface {
	// SendText renders a plain reply.
	SendText(ctx context.Context, userID int64, text string) error
	// SendReady renders a reply with the "ready for the first video" affordance.
	SendReady(ctx context.Context, userID int64, text string) error
	// SendControls renders a reply with the understood/overview affordances.
	SendControls(ctx context.Context, userID int64, text string) error
	// SendOverview renders the course overview with its lesson choices.
	SendOverview(ctx context.Context, userID int64, text string, ov *course.Overview) error
}

// Config holds the engine's pacing and progression parameters.
type Config struct {
	// VideoWaitTime is the scripted pause between presenting a lesson and
	// asking its question. It always elapses fully; there is no cancellation.
	VideoWaitTime     time.Duration
	MaxVideosPerLevel int
}

// welcome is the cached Entry-level greeting lesson.
type welcome struct {
	title       string
	description string
	question    string
}

// Engine is the progress state machine. Events for one user must arrive
// sequentially (the dispatcher enforces this); different users may be
// handled in parallel.
type Engine struct {
	store         recordstore.Store
	oracle        Oracle
	conversations *conversation.Store
	presenter     Presenter
	logger        *zap.Logger
	cfg           Config

	videoCache    *cache.TTL[string, *entities.VideoInfo]
	catalogCache  *cache.TTL[string, []*entities.VideoInfo]
	overviewCache *cache.TTL[string, string]
	welcomeCache  *cache.TTL[string, welcome]

	// sleep implements the scripted pacing delays; replaced in tests.
	sleep func(time.Duration)
	// pickFallbackLevel supplies the random placement fallback.
	pickFallbackLevel func() entities.Level
}

// Oracle is the assessment capability the engine consumes. Mirrors
// assessment.Oracle; declared at the consumer.
type Oracle interface {
	ClassifyPlacement(ctx context.Context, question, answer string) (entities.Level, error)
	AssessResponse(ctx context.Context, question, answer, benchmark, history string) (string, error)
}

// New wires an Engine from its collaborators.
func New(
	store recordstore.Store,
	oracle Oracle,
	conversations *conversation.Store,
	presenter Presenter,
	logger *zap.Logger,
	cfg Config,
) *Engine {
	fallbackLevels := []entities.Level{
		entities.LevelBeginner,
		entities.LevelIntermediate,
		entities.LevelAdvanced,
	}

	return &Engine{
		store:         store,
		oracle:        oracle,
		conversations: conversations,
		presenter:     presenter,
		logger:        logger,
		cfg:           cfg,
		videoCache:    cache.New[string, *entities.VideoInfo](10 * time.Minute),
		catalogCache:  cache.New[string, []*entities.VideoInfo](10 * time.Minute),
		overviewCache: cache.New[string, string](5 * time.Minute),
		welcomeCache:  cache.New[string, welcome](time.Hour),
		sleep:         time.Sleep,
		pickFallbackLevel: func() entities.Level {
			return fallbackLevels[rand.Intn(len(fallbackLevels))]
		},
	}
}

// findUser loads a user's persisted progress, translating a missing row into
// (nil, nil) so handlers can answer with the registration prompt.
func (e *Engine) findUser(ctx context.Context, userID int64) (*entities.UserProgress, error) {
	user, err := e.store.FindUser(ctx, userID)
	if err == recordstore.ErrUserNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// videoInfo looks up a lesson by position through the TTL cache. A missing
// lesson is (nil, nil).
func (e *Engine) videoInfo(ctx context.Context, level entities.Level, videoNumber int) (*entities.VideoInfo, error) {
	key := fmt.Sprintf("%s:%d", level, videoNumber)
	if v, ok := e.videoCache.Get(key); ok {
		return v, nil
	}

	videos, err := e.store.ListVideos(ctx, recordstore.ByPosition(level, videoNumber))
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, nil
	}

	e.videoCache.Set(key, videos[0])
	return videos[0], nil
}

// catalog returns the full lesson catalog through the TTL cache.
func (e *Engine) catalog(ctx context.Context) ([]*entities.VideoInfo, error) {
	if c, ok := e.catalogCache.Get("catalog"); ok {
		return c, nil
	}

	videos, err := e.store.ListVideos(ctx, recordstore.VideoFilter{})
	if err != nil {
		return nil, err
	}

	e.catalogCache.Set("catalog", videos)
	return videos, nil
}

// loadWelcome returns the Entry-level greeting lesson, cached for an hour.
func (e *Engine) loadWelcome(ctx context.Context) welcome {
	if w, ok := e.welcomeCache.Get("welcome"); ok {
		return w
	}

	w := welcome{title: msgWelcomeNotFound}
	videos, err := e.store.ListVideos(ctx, recordstore.ByLevel(entities.LevelEntry))
	if err != nil {
		e.logger.Error("failed to load welcome lesson", zap.Error(err))
		return w
	}
	if len(videos) > 0 {
		w = welcome{
			title:       videos[0].Title,
			description: videos[0].Description,
			question:    videos[0].Question,
		}
	}

	e.welcomeCache.Set("welcome", w)
	return w
}

// welcomeQuestion is the placement question scored during the placement test.
func (e *Engine) welcomeQuestion(ctx context.Context) string {
	return e.loadWelcome(ctx).question
}

// logMessage appends a message to the record store's log. Failures are
// logged and swallowed; the log is not correctness-bearing.
func (e *Engine) logMessage(ctx context.Context, text string, role entities.Role, videoRecordID string) string {
	id, err := e.store.AppendMessage(ctx, text, role, videoRecordID)
	if err != nil {
		e.logger.Warn("failed to append message log",
			zap.String("role", role.LogLabel()),
			zap.Error(err),
		)
		return ""
	}

	return id
}

// writeBack persists the user's progress. Always called after the
// user-visible reply for the transition; a failure leaves the store one step
// behind what was shown, which the next event re-reads and tolerates.
func (e *Engine) writeBack(ctx context.Context, user *entities.UserProgress) {
	if err := e.store.UpdateUser(ctx, user); err != nil {
		e.logger.Error("failed to write back user progress",
			zap.Int64("user_id", user.UserID),
			zap.String("level", string(user.Level)),
			zap.Int("video_number", user.VideoNumber),
			zap.Error(err),
		)
	}
}
