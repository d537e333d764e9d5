package telegram

// Reserved reply-keyboard phrases. Incoming text matching one of these is a
// control signal, not conversation input.
const (
	phraseUnderstood = "Verstanden!"
	phraseOverview   = "📋 Kursübersicht"
)

// Button labels.
const (
	btnReady = "🚀 Ja!"
)

// Callback acknowledgements shown as toast notifications.
const (
	ackReady        = "Perfekt! Video wird geladen..."
	ackNext         = "Nächstes Video wird geladen..."
	ackLesson       = "Video wird geladen..."
	ackReviewSuffix = " (Wiederholung)"
)

const msgUnknownCommand = "Unbekannter Befehl. Nutze /start um zu beginnen."

// buttonTitleLimit keeps overview button captions readable on small screens.
const buttonTitleLimit = 25

// truncateTitle shortens a lesson title for use as a button caption.
func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= buttonTitleLimit {
		return title
	}
	return string(runes[:buttonTitleLimit]) + "..."
}
