// Package transcript holds the ordered message log of a chat session.
package transcript

import (
	"strings"

	"github.com/google/uuid"

	"chatwidget/internal/domain"
)

// Store is the append-only message log. It is not synchronized; the owning
// controller serializes every call.
type Store struct {
	messages []domain.Message
}

func NewStore() *Store {
	return &Store{}
}

// Append adds message to the end of the log and returns its id.
func (s *Store) Append(message domain.Message) string {
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Status == "" {
		message.Status = domain.MessageStatusFinal
	}
	s.messages = append(s.messages, message)
	return message.ID
}

// AppendPendingPair appends the user's message followed by a pending bot
// placeholder and returns the placeholder id.
func (s *Store) AppendPendingPair(userText string) (string, error) {
	if _, ok := s.Pending(); ok {
		return "", domain.ErrBusy
	}

	s.messages = append(s.messages, domain.Message{
		ID:     uuid.NewString(),
		Sender: domain.SenderUser,
		Text:   userText,
		Status: domain.MessageStatusFinal,
	})
	pending := domain.Message{
		ID:     uuid.NewString(),
		Sender: domain.SenderBot,
		Status: domain.MessageStatusPending,
	}
	s.messages = append(s.messages, pending)
	return pending.ID, nil
}

// Resolve finalizes the pending message id with text.
func (s *Store) Resolve(id string, text string) error {
	return s.settle(id, text, domain.MessageStatusFinal)
}

// Fail marks the pending message id as failed and shows errorText instead.
func (s *Store) Fail(id string, errorText string) error {
	return s.settle(id, errorText, domain.MessageStatusFailed)
}

func (s *Store) settle(id string, text string, status domain.MessageStatus) error {
	for i := range s.messages {
		if s.messages[i].ID != id {
			continue
		}
		if s.messages[i].Status != domain.MessageStatusPending {
			return domain.ErrNotFound
		}
		s.messages[i].Text = text
		s.messages[i].Status = status
		return nil
	}
	return domain.ErrNotFound
}

// Pending returns the outstanding placeholder, if any.
func (s *Store) Pending() (domain.Message, bool) {
	for _, message := range s.messages {
		if message.Status == domain.MessageStatusPending {
			return message, true
		}
	}
	return domain.Message{}, false
}

// History returns the settled, non-failed turns for the chat wire.
func (s *Store) History() []domain.ChatTurn {
	turns := make([]domain.ChatTurn, 0, len(s.messages))
	for _, message := range s.messages {
		if message.Status != domain.MessageStatusFinal || strings.TrimSpace(message.Text) == "" {
			continue
		}
		turns = append(turns, domain.ChatTurn{Sender: message.Sender, Text: message.Text})
	}
	return turns
}

// Messages returns a copy of the log in arrival order.
func (s *Store) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) Len() int {
	return len(s.messages)
}

func (s *Store) Clear() {
	s.messages = nil
}
