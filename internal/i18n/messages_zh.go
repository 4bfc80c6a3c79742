package i18n

// chineseMessages contains all Simplified Chinese translations.
var chineseMessages = map[string]string{
	// Redaction reasons shown in room history
	"reason.oversize":         "消息已删除：超过了 %d 字符的群组上限",
	"reason.duplicate":        "消息已删除：请不要重复发送",
	"reason.duplicate_severe": "消息已删除：重复次数过多",
	"reason.spam":             "潜在的 spam！请不要发送此类信息，它们在群组内不受欢迎",

	// In-room notices
	"notice.duplicate_warning": "%s：你已经发送过这条消息了，重复的消息会被删除。",
}
