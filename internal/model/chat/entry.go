package chat

import "time"

// Origin tells where a log entry came from.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// EchoPrefix is prepended to locally authored messages in the transcript.
const EchoPrefix = "you: "

// LogEntry is one displayed line of the chat transcript. Entries are never mutated after append.
type LogEntry struct {
	Text      string    `json:"text"`
	Origin    Origin    `json:"origin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Echo builds the local transcript line for text the user sent.
func Echo(text string, at time.Time) LogEntry {
	return LogEntry{Text: EchoPrefix + text, Origin: OriginLocal, CreatedAt: at}
}
