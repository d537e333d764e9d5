// messages.go contains the user-facing reply texts and the course-overview
// rendering. The bot speaks German; identifiers stay English.
package engine

import (
	"fmt"
	"strings"

	"github.com/mlehnert/videokurs-bot/internal/course"
)

const (
	msgWelcomeNotFound   = "Keine Willkommensnachricht gefunden."
	msgAlreadyRegistered = "Du bist bereits registriert."
	msgStartBotFirst     = "Bitte starte den Bot mit /start"
	msgUserDataError     = "Fehler beim Abrufen der Benutzerdaten. Bitte versuche es erneut."
	msgUserCreateError   = "Fehler beim Erstellen des Benutzers. Bitte versuche es erneut."
	msgVideoNotFound     = "Entschuldigung, das Video konnte nicht gefunden werden."
	msgVideoProcessing   = "Bitte warte, das Video wird gerade verarbeitet..."
	msgPlacementDone     = "Perfekt! Du bist bereit für dein erstes Video."
	msgNextVideoStart    = "Super! Dann starten wir mit dem nächsten Video!"
	msgOverviewChat      = "Das ist eine gute Frage zum Kurs! Du kannst spezifische Videos auswählen, " +
		"indem du auf die Video-Titel in der Übersicht klickst. Oder du kannst mit 'Verstanden!' " +
		"zum nächsten Video in deinem aktuellen Level fortfahren."

	// Canonical texts recorded in the message log when the user presses a
	// reserved button; the presentation layer reports only the signal.
	logUnderstoodPressed = "Verstanden!"
	logOverviewPressed   = "📋 Kursübersicht"
)

func msgCongratulations(level string) string {
	return fmt.Sprintf("🎉 Glückwunsch! Du bist jetzt auf dem %s Level!", level)
}

func msgReviewEnded(level string, videoNumber int) string {
	return fmt.Sprintf("Wiederholung beendet! Du bist zurück bei %s Video %d.", level, videoNumber)
}

func msgThanksForAnswer(answer string) string {
	return fmt.Sprintf("Danke für deine Antwort: %s", answer)
}

func msgYouSaid(text string) string {
	return fmt.Sprintf("Du hast gesagt: %s", text)
}

// statusIcon maps a projection status to its overview marker.
func statusIcon(status course.VideoStatus) string {
	switch status {
	case course.StatusCompleted:
		return "✅"
	case course.StatusCurrent:
		return "📍"
	default:
		return "⏳"
	}
}

// renderOverview formats the projection as the course-overview message.
// Deterministic for a fixed projection, so the result is cacheable.
func renderOverview(ov *course.Overview) string {
	if ov.Total == 0 {
		return "📋 **Kursübersicht**\n\nKeine Videos gefunden."
	}

	lines := []string{"📋 **Kursübersicht**\n"}

	for _, group := range ov.Levels {
		if group.IsCurrent {
			lines = append(lines, fmt.Sprintf("📍 **%s Level** (Aktuell)", group.Level))
		} else {
			lines = append(lines, fmt.Sprintf("📚 **%s Level**", group.Level))
		}

		for _, v := range group.Videos {
			lines = append(lines, fmt.Sprintf("  %s Video %d: 📹 %s",
				statusIcon(v.Status), v.Video.VideoNumber, v.Video.Title))
		}

		lines = append(lines, "")
	}

	lines = append(lines, fmt.Sprintf("📊 **Gesamtfortschritt**: %d/%d Videos (%d%%)",
		ov.Completed, ov.Total, ov.Percent()))

	return strings.Join(lines, "\n")
}
