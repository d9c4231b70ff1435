package assistants

import (
	"encoding/json"
	"strings"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/ids"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

func newMessage(threadID string, req *MessageRequest, now int64) (*Message, error) {
	role := req.Role
	if role == "" {
		role = RoleUser
	}
	if role != RoleUser && role != RoleAssistant {
		return nil, apierror.Validation("role", "role must be 'user' or 'assistant', got '%s'", role)
	}
	text := req.Content.Text()
	if strings.TrimSpace(text) == "" {
		return nil, apierror.Validation("content", "content is required")
	}
	return &Message{
		ID:          ids.New(ids.Message),
		Object:      ObjectMessage,
		CreatedAt:   now,
		ThreadID:    threadID,
		Role:        role,
		Content:     textContent(text),
		Attachments: req.Attachments,
		Metadata:    orEmpty(req.Metadata),
	}, nil
}

func textContent(text string) []MessageContent {
	return []MessageContent{{
		Type: "text",
		Text: MessageText{Value: text, Annotations: []json.RawMessage{}},
	}}
}

// CreateMessage appends a message to a thread.
func (s *Store) CreateMessage(threadID string, req *MessageRequest) (*Message, error) {
	m, err := newMessage(threadID, req, s.unix())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil, apierror.NotFound("thread", threadID)
	}
	s.messages[m.ID] = m
	t.messageIDs = append(t.messageIDs, m.ID)
	out := *m
	return &out, nil
}

// GetMessage returns a message of a thread.
func (s *Store) GetMessage(threadID, messageID string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.threads[threadID]; !ok {
		return nil, apierror.NotFound("thread", threadID)
	}
	m, ok := s.messages[messageID]
	if !ok || m.ThreadID != threadID {
		return nil, apierror.NotFound("message", messageID)
	}
	out := *m
	return &out, nil
}

// ListMessages pages a thread's messages.
func (s *Store) ListMessages(threadID string, p ListParams) (List[*Message], error) {
	p, err := p.normalize()
	if err != nil {
		return List[*Message]{}, err
	}
	s.mu.RLock()
	t, ok := s.threads[threadID]
	if !ok {
		s.mu.RUnlock()
		return List[*Message]{}, apierror.NotFound("thread", threadID)
	}
	items := make([]*Message, 0, len(t.messageIDs))
	for _, id := range t.messageIDs {
		m := *s.messages[id]
		items = append(items, &m)
	}
	s.mu.RUnlock()
	return paginate(items, func(m *Message) string { return m.ID }, p), nil
}
