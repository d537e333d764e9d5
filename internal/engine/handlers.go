package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mlehnert/videokurs-bot/internal/course"
	"github.com/mlehnert/videokurs-bot/internal/domain/entities"
)

// Scripted pacing between consecutive messages. Like the lesson wait these
// always elapse fully.
const (
	pauseShort = time.Second
	pauseLong  = 2 * time.Second
)

// HandleStart processes /start: register the user and run the welcome script,
// or tell an existing user they are already registered.
func (e *Engine) HandleStart(ctx context.Context, userID int64) error {
	user, err := e.findUser(ctx, userID)
	if err != nil {
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}

	if user != nil {
		if user.RecordID == "" {
			e.logger.Error("user exists but has no record id", zap.Int64("user_id", userID))
			return e.presenter.SendText(ctx, userID, msgUserDataError)
		}

		e.logMessage(ctx, msgAlreadyRegistered, entities.RoleAssistant, "")
		return e.presenter.SendText(ctx, userID, msgAlreadyRegistered)
	}

	// The record was deleted upstream or never existed; drop any in-memory
	// leftovers before the identity is (re)registered.
	e.conversations.Clear(userID)

	created, err := e.store.CreateUser(ctx, userID, entities.LevelEntry, 0, entities.StatePlacementTest)
	if err != nil || created.RecordID == "" {
		e.logger.Error("failed to create user", zap.Int64("user_id", userID), zap.Error(err))
		return e.presenter.SendText(ctx, userID, msgUserCreateError)
	}

	w := e.loadWelcome(ctx)
	e.logMessage(ctx, w.title, entities.RoleAssistant, "")
	e.logMessage(ctx, w.description, entities.RoleAssistant, "")
	e.logMessage(ctx, w.question, entities.RoleAssistant, "")

	if err := e.presenter.SendText(ctx, userID, w.title); err != nil {
		return err
	}
	e.sleep(pauseShort)
	if err := e.presenter.SendText(ctx, userID, w.description); err != nil {
		return err
	}
	e.sleep(pauseLong)

	return e.presenter.SendText(ctx, userID, w.question)
}

// signalState reports whether the reserved control signals (understood,
// overview) act in the given state. Everywhere else the phrase is ordinary
// input for the state router.
func signalState(state entities.State) bool {
	return state == entities.StateWaitingForResponse || state == entities.StateChatMode
}

// HandleText routes a free-text message on the user's persisted state.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) error {
	user, err := e.findUser(ctx, userID)
	if err != nil {
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}
	if user == nil {
		return e.presenter.SendText(ctx, userID, msgStartBotFirst)
	}

	return e.routeText(ctx, user, text)
}

// routeText dispatches text on the user's persisted state.
func (e *Engine) routeText(ctx context.Context, user *entities.UserProgress, text string) error {
	switch user.State {
	case entities.StatePlacementTest:
		return e.handlePlacement(ctx, user, text)
	case entities.StateShowingVideo:
		// Not input-driven; the lesson script is still running.
		return e.presenter.SendText(ctx, user.UserID, msgVideoProcessing)
	case entities.StateWaitingForResponse:
		return e.handleAnswer(ctx, user, text, true)
	case entities.StateChatMode:
		return e.handleAnswer(ctx, user, text, false)
	case entities.StateCourseOverview:
		return e.handleOverviewChat(ctx, user, text)
	default:
		return e.presenter.SendText(ctx, user.UserID, text)
	}
}

// handlePlacement scores the placement answer and assigns the starting level.
// An oracle failure falls back to a uniform-random non-entry level.
func (e *Engine) handlePlacement(ctx context.Context, user *entities.UserProgress, answer string) error {
	e.logMessage(ctx, answer, entities.RoleUser, "")

	level, err := e.oracle.ClassifyPlacement(ctx, e.welcomeQuestion(ctx), answer)
	if err != nil {
		level = e.pickFallbackLevel()
		e.logger.Warn("placement oracle failed, assigned random level",
			zap.Int64("user_id", user.UserID),
			zap.String("level", string(level)),
			zap.Error(err),
		)
	}

	user.Level = level
	user.VideoNumber = 1
	user.State = entities.StateShowingVideo

	e.logMessage(ctx, msgPlacementDone, entities.RoleAssistant, "")
	if err := e.presenter.SendReady(ctx, user.UserID, msgPlacementDone); err != nil {
		return err
	}

	e.writeBack(ctx, user)

	e.logger.Info("placement test completed",
		zap.Int64("user_id", user.UserID),
		zap.String("level", string(level)),
	)
	return nil
}

// handleAnswer runs the assessment-and-record cycle for a lesson answer.
// fromWaiting transitions the user into chat mode afterwards.
func (e *Engine) handleAnswer(ctx context.Context, user *entities.UserProgress, text string, fromWaiting bool) error {
	fallback := msgYouSaid
	if fromWaiting {
		fallback = msgThanksForAnswer
	}

	video, err := e.videoInfo(ctx, user.Level, user.VideoNumber)
	if err != nil || video == nil {
		if err != nil {
			e.logger.Error("failed to load video for assessment", zap.Error(err))
		}

		// No lesson to assess against; acknowledge and move on.
		e.logMessage(ctx, text, entities.RoleUser, "")
		reply := fallback(text)
		e.logMessage(ctx, reply, entities.RoleAssistant, "")
		if err := e.presenter.SendControls(ctx, user.UserID, reply); err != nil {
			return err
		}

		if fromWaiting {
			user.State = entities.StateChatMode
			e.writeBack(ctx, user)
		}
		return nil
	}

	if fromWaiting {
		// First answer for this lesson; make sure a context exists.
		e.conversations.GetOrCreate(user.UserID, video)
	}

	userMsgID := e.logMessage(ctx, text, entities.RoleUser, video.RecordID)
	e.conversations.Append(user.UserID, entities.RoleUser, text, userMsgID)

	history := e.conversations.Summary(user.UserID)

	var reply string
	feedback, err := e.oracle.AssessResponse(ctx, video.Question, text, video.UnderstandingBenchmark, history)
	if err != nil {
		e.logger.Warn("assessment oracle failed",
			zap.Int64("user_id", user.UserID),
			zap.Error(err),
		)
		reply = fallback(text)
	} else {
		reply = "💭 " + feedback
	}

	botMsgID := e.logMessage(ctx, reply, entities.RoleAssistant, video.RecordID)
	e.conversations.Append(user.UserID, entities.RoleAssistant, reply, botMsgID)

	if err := e.presenter.SendControls(ctx, user.UserID, reply); err != nil {
		return err
	}

	if fromWaiting {
		user.State = entities.StateChatMode
		e.writeBack(ctx, user)
	}
	return nil
}

// handleOverviewChat answers free text sent while the overview is open.
func (e *Engine) handleOverviewChat(ctx context.Context, user *entities.UserProgress, text string) error {
	e.logMessage(ctx, text, entities.RoleUser, "")
	e.logMessage(ctx, msgOverviewChat, entities.RoleAssistant, "")

	return e.presenter.SendText(ctx, user.UserID, msgOverviewChat)
}

// HandleReady processes the "ready" button after placement and presents the
// user's current lesson.
func (e *Engine) HandleReady(ctx context.Context, userID int64) error {
	user, err := e.findUser(ctx, userID)
	if err != nil {
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}
	if user == nil {
		return e.presenter.SendText(ctx, userID, msgStartBotFirst)
	}

	return e.enterLesson(ctx, user)
}

// enterLesson is the atomic enter-and-present action for the ShowingVideo
// state: present the lesson, run the scripted wait, ask the question and
// self-transition to WaitingForResponse. Every transition that lands in
// ShowingVideo funnels through here; the state never waits for input.
func (e *Engine) enterLesson(ctx context.Context, user *entities.UserProgress) error {
	video, err := e.videoInfo(ctx, user.Level, user.VideoNumber)
	if err != nil || video == nil {
		if err != nil {
			e.logger.Error("failed to load lesson", zap.Error(err))
		} else {
			e.logger.Error("lesson not found",
				zap.String("level", string(user.Level)),
				zap.Int("video_number", user.VideoNumber),
			)
		}
		return e.presenter.SendText(ctx, user.UserID, msgVideoNotFound)
	}

	if video.URL != "" {
		if err := e.presenter.SendText(ctx, user.UserID, "📹 "+video.Title+". \n "+video.Description); err != nil {
			return err
		}
		e.sleep(pauseLong)
		if err := e.presenter.SendText(ctx, user.UserID, "🎥 Video: "+video.URL); err != nil {
			return err
		}
	} else {
		if err := e.presenter.SendText(ctx, user.UserID, "📹 "+video.Title); err != nil {
			return err
		}
	}

	e.sleep(e.cfg.VideoWaitTime)

	if err := e.presenter.SendText(ctx, user.UserID, "❓ "+video.Question); err != nil {
		return err
	}

	user.State = entities.StateWaitingForResponse
	e.writeBack(ctx, user)

	e.logger.Info("lesson presented",
		zap.Int64("user_id", user.UserID),
		zap.String("level", string(user.Level)),
		zap.Int("video_number", user.VideoNumber),
		zap.String("title", video.Title),
	)
	return nil
}

// HandleUnderstood processes the "understood" signal: end a running review,
// or advance to the next lesson.
func (e *Engine) HandleUnderstood(ctx context.Context, userID int64) error {
	user, err := e.findUser(ctx, userID)
	if err != nil {
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}
	if user == nil {
		return e.presenter.SendText(ctx, userID, msgStartBotFirst)
	}
	if !signalState(user.State) {
		// Outside a lesson conversation the phrase is ordinary input: a
		// placement answer, overview chat, or a processing notice.
		return e.routeText(ctx, user, logUnderstoodPressed)
	}
	if user.RecordID == "" {
		e.logger.Error("user exists but has no record id", zap.Int64("user_id", userID))
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}

	current, _ := e.videoInfo(ctx, user.Level, user.VideoNumber)
	videoID := ""
	if current != nil {
		videoID = current.RecordID
	}

	if snap, ok := e.conversations.ConsumeReview(userID); ok {
		// End of a review: restore the true position, do not advance.
		user.Level = snap.OriginalLevel
		user.VideoNumber = snap.OriginalVideoNumber
		user.State = entities.StateChatMode

		e.logMessage(ctx, logUnderstoodPressed, entities.RoleUser, videoID)
		reply := msgReviewEnded(string(snap.OriginalLevel), snap.OriginalVideoNumber)
		e.logMessage(ctx, reply, entities.RoleAssistant, videoID)

		if err := e.presenter.SendControls(ctx, userID, reply); err != nil {
			return err
		}
		e.writeBack(ctx, user)

		e.logger.Info("review session ended",
			zap.Int64("user_id", userID),
			zap.String("restored_level", string(snap.OriginalLevel)),
			zap.Int("restored_video_number", snap.OriginalVideoNumber),
		)
		return nil
	}

	e.logMessage(ctx, logUnderstoodPressed, entities.RoleUser, videoID)
	e.logMessage(ctx, msgNextVideoStart, entities.RoleAssistant, videoID)
	if err := e.presenter.SendText(ctx, userID, msgNextVideoStart); err != nil {
		return err
	}
	e.sleep(pauseShort)

	return e.advance(ctx, user)
}

// HandleAdvance processes the discrete "next video" signal.
func (e *Engine) HandleAdvance(ctx context.Context, userID int64) error {
	user, err := e.findUser(ctx, userID)
	if err != nil {
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}
	if user == nil {
		return e.presenter.SendText(ctx, userID, msgStartBotFirst)
	}

	return e.advance(ctx, user)
}

// advance moves the user one lesson forward and presents it. A level-up is
// congratulated before the new lesson is shown.
func (e *Engine) advance(ctx context.Context, user *entities.UserProgress) error {
	newLevel, newNumber := course.Advance(user.Level, user.VideoNumber, e.cfg.MaxVideosPerLevel)

	if newLevel != user.Level {
		if err := e.presenter.SendText(ctx, user.UserID, msgCongratulations(string(newLevel))); err != nil {
			return err
		}
	}

	user.Level = newLevel
	user.VideoNumber = newNumber
	user.State = entities.StateShowingVideo

	// Fresh dialogue for the new lesson.
	if video, err := e.videoInfo(ctx, newLevel, newNumber); err == nil && video != nil {
		e.conversations.Replace(user.UserID, video)
	}

	return e.enterLesson(ctx, user)
}

// HandleOverview projects the catalog against the user's position and
// presents the course overview.
func (e *Engine) HandleOverview(ctx context.Context, userID int64) error {
	user, err := e.findUser(ctx, userID)
	if err != nil {
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}
	if user == nil {
		return e.presenter.SendText(ctx, userID, msgStartBotFirst)
	}
	if !signalState(user.State) {
		return e.routeText(ctx, user, logOverviewPressed)
	}
	if user.RecordID == "" {
		e.logger.Error("user exists but has no record id", zap.Int64("user_id", userID))
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}

	catalog, err := e.catalog(ctx)
	if err != nil {
		e.logger.Error("failed to load catalog", zap.Error(err))
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}

	ov := course.Project(catalog, user.Level, user.VideoNumber)

	cacheKey := fmt.Sprintf("%s:%d", user.Level, user.VideoNumber)
	text, ok := e.overviewCache.Get(cacheKey)
	if !ok {
		text = renderOverview(ov)
		e.overviewCache.Set(cacheKey, text)
	}

	e.logMessage(ctx, logOverviewPressed, entities.RoleUser, "")
	e.logMessage(ctx, text, entities.RoleAssistant, "")

	if err := e.presenter.SendOverview(ctx, userID, text, ov); err != nil {
		return err
	}

	user.State = entities.StateCourseOverview
	e.writeBack(ctx, user)
	return nil
}

// HandleLessonSelect processes a lesson chosen from the overview. Selecting
// the current true position is a plain jump; anything else starts a review
// that snapshots the persisted position for later restore.
func (e *Engine) HandleLessonSelect(ctx context.Context, userID int64, videoRecordID string, isReview bool) error {
	user, err := e.findUser(ctx, userID)
	if err != nil {
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}
	if user == nil {
		return e.presenter.SendText(ctx, userID, msgStartBotFirst)
	}

	catalog, err := e.catalog(ctx)
	if err != nil {
		e.logger.Error("failed to load catalog", zap.Error(err))
		return e.presenter.SendText(ctx, userID, msgUserDataError)
	}

	var target *entities.VideoInfo
	for _, v := range catalog {
		if v.RecordID == videoRecordID {
			target = v
			break
		}
	}
	if target == nil {
		return e.presenter.SendText(ctx, userID, msgVideoNotFound)
	}

	if isReview {
		// Keep the true position; the review write-back below carries the
		// temporary one, restored when the user signals understood.
		e.conversations.StartReview(userID, user.Level, user.VideoNumber, target.RecordID)
		e.logger.Info("review session started",
			zap.Int64("user_id", userID),
			zap.String("video_title", target.Title),
			zap.String("original_level", string(user.Level)),
			zap.Int("original_video_number", user.VideoNumber),
		)
	}

	user.Level = target.Level
	user.VideoNumber = target.VideoNumber
	user.State = entities.StateShowingVideo

	if !isReview {
		// A jump to the current position is a plain persisted move.
		e.writeBack(ctx, user)
	}

	e.conversations.Replace(userID, target)

	return e.enterLesson(ctx, user)
}
