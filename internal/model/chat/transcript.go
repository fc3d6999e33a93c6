package chat

// SystemPromptID identifies the persona message that opens every transcript.
const SystemPromptID = "system-prompt"

// Transcript is the ordered, append-only message list of one client session.
// It is not safe for concurrent use; owners serialise access.
type Transcript struct {
	messages []Message
}

// NewTranscript starts a transcript with the fixed system message.
func NewTranscript(systemPrompt string) *Transcript {
	return &Transcript{
		messages: []Message{{
			ID:      SystemPromptID,
			Role:    RoleSystem,
			Content: systemPrompt,
		}},
	}
}

// Append adds a message at the end.
func (t *Transcript) Append(m Message) {
	t.messages = append(t.messages, m)
}

// Len returns the number of messages, including the system message.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// Messages returns a copy of every message.
func (t *Transcript) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

// Visible returns the messages shown to a user, i.e. all but the system message.
func (t *Transcript) Visible() []Message {
	if len(t.messages) <= 1 {
		return nil
	}
	return append([]Message(nil), t.messages[1:]...)
}

// Turns projects the full transcript onto the wire shape.
func (t *Transcript) Turns() []Turn {
	turns := make([]Turn, 0, len(t.messages))
	for _, m := range t.messages {
		turns = append(turns, m.Turn())
	}
	return turns
}

// Last returns the newest message.
func (t *Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}
