package commander

// Commander is the chat transport abstraction the relay consumes.
type Commander interface {
	GetUpdates(offset int64, timeout int) ([]Update, error)
	SendMessage(chatID int64, text string) error
}

// Update represents one inbound transport event.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents an inbound chat message.
type Message struct {
	Chat Chat    `json:"chat"`
	From *User   `json:"from,omitempty"`
	Text *string `json:"text,omitempty"`
	Date int64   `json:"date"`
}

// Chat identifies a conversation session.
type Chat struct {
	ID int64 `json:"id"`
}

// User identifies the sender; used for logging only.
type User struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// DisplayName returns the best available sender name for log lines.
func (m *Message) DisplayName() string {
	if m == nil || m.From == nil {
		return "User"
	}
	if m.From.Username != "" {
		return m.From.Username
	}
	if m.From.FirstName != "" {
		return m.From.FirstName
	}
	return "User"
}
