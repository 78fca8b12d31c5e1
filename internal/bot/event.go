package bot

import (
	"context"
	"time"

	"github.com/m3rciful/quicklink/internal/broadcast"
)

// Kind tags an inbound event.
type Kind int

const (
	KindCommand Kind = iota + 1
	KindCallback
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindCallback:
		return "callback"
	case KindMessage:
		return "message"
	}
	return "unknown"
}

// Media describes an attached file.
type Media struct {
	Kind   broadcast.Kind
	FileID string
	// Image is set for photos and image documents, the inputs QR scanning accepts.
	Image bool
	// Ext is the file extension used for the local copy, with the dot.
	Ext string
}

// Event is one inbound update reduced to what the flows need.
type Event struct {
	Kind   Kind
	UserID int64
	ChatID int64
	// MessageID is the message that carried the pressed button.
	MessageID  int
	CallbackID string
	// Command is the canonical command name without slash.
	Command string
	Args    string
	// Text is the message text or media caption.
	Text  string
	Data  string
	Media *Media
}

// Button is an inline button with raw namespace|value data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a list of button rows.
type Keyboard [][]Button

// Message is an outbound text with an optional inline keyboard.
type Message struct {
	Text     string
	Keyboard Keyboard
	// Markdown marks Text as MarkdownV2.
	Markdown bool
}

// Responder performs the outbound side of a conversation.
type Responder interface {
	Send(ctx context.Context, chatID int64, m Message) error
	SendPhoto(ctx context.Context, chatID int64, png []byte, m Message) error
	Edit(ctx context.Context, chatID int64, messageID int, m Message) error
	Answer(ctx context.Context, callbackID, text string, alert bool) error
}

// Downloader copies a remote file to dst.
type Downloader interface {
	Download(ctx context.Context, fileID, dst string) error
}

// Codec renders and locally decodes QR images.
type Codec interface {
	Encode(text string) ([]byte, error)
	DecodeFile(path string) ([]string, error)
}

// RemoteDecoder decodes a QR image through an external service.
type RemoteDecoder interface {
	DecodeFile(ctx context.Context, path string) ([]string, error)
}

// Shortener shortens long URLs. A failure's Error text is shown to the user as is.
type Shortener interface {
	Shorten(ctx context.Context, long, alias string) (string, error)
}

// ChatRelay forwards a question to the support chatbot.
type ChatRelay interface {
	Configured() bool
	Ask(ctx context.Context, text string) (string, error)
}

// Clock returns the current time.
type Clock func() time.Time
