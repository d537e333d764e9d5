package telegram

import "strings"

// Callback action constants.
const (
	actionReady  = "ready"
	actionNext   = "next"
	actionLesson = "lesson"
)

// callbackData represents structured callback data.
type callbackData struct {
	Action string
	Params []string
	Raw    string
}

// encode creates callback string.
func (cd callbackData) encode() string {
	if len(cd.Params) == 0 {
		return cd.Action
	}
	return cd.Action + ":" + strings.Join(cd.Params, ":")
}

// decodeCallback parses callback data string.
func decodeCallback(data string) callbackData {
	parts := strings.Split(data, ":")
	if len(parts) == 0 {
		return callbackData{Raw: data}
	}

	return callbackData{
		Action: parts[0],
		Params: parts[1:],
		Raw:    data,
	}
}

// buildReadyCallback builds callback data for the post-placement ready button.
func buildReadyCallback() string {
	return actionReady
}

// buildNextCallback builds callback data for advancing to the next lesson.
func buildNextCallback() string {
	return actionNext
}

// buildLessonCallback builds callback data for selecting a lesson from the
// overview. The review flag distinguishes a revisit from a jump to the
// current position.
func buildLessonCallback(videoRecordID string, isReview bool) string {
	review := "0"
	if isReview {
		review = "1"
	}
	return callbackData{
		Action: actionLesson,
		Params: []string{videoRecordID, review},
	}.encode()
}
