package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Redaction reasons shown in room history
	"reason.oversize":         "Message removed: longer than the %d character room limit",
	"reason.duplicate":        "Message removed: please do not repeat yourself",
	"reason.duplicate_severe": "Message removed: repeated too many times",
	"reason.spam":             "Potential spam! Please do not send messages like this, they are not welcome in this room",

	// In-room notices
	"notice.duplicate_warning": "%s: you already sent that. Repeated messages are removed.",
}
