package events

const KindNoticeRaised Kind = "notice.raised"

type NoticeLevel string

const (
	NoticeLevelInfo  NoticeLevel = "info"
	NoticeLevelError NoticeLevel = "error"
)

// NoticeRaised is a message for the user. Persistent notices stay visible
// until the condition that raised them is resolved.
type NoticeRaised struct {
	Base
	Level      NoticeLevel
	Message    string
	Persistent bool
}

func NewNoticeRaised(level NoticeLevel, message string, persistent bool) NoticeRaised {
	return NoticeRaised{Base: NewBase(KindNoticeRaised), Level: level, Message: message, Persistent: persistent}
}
