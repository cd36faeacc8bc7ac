package message

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/relaydesk/relaydesk/internal/chat"
	"github.com/relaydesk/relaydesk/internal/event"
	"github.com/relaydesk/relaydesk/internal/messenger"
	"github.com/relaydesk/relaydesk/internal/source"
)

type memRepo struct {
	nextID   int64
	messages map[int64]Message
}

func newMemRepo() *memRepo {
	return &memRepo{messages: make(map[int64]Message)}
}

func (m *memRepo) Insert(_ context.Context, input CreateInput) (Message, bool, error) {
	if input.ExternalMessageID != "" {
		for _, msg := range m.messages {
			if msg.ChatID == input.ChatID && msg.ExternalMessageID == input.ExternalMessageID {
				return msg, false, nil
			}
		}
	}
	m.nextID++
	msg := Message{
		ID:                m.nextID,
		ChatID:            input.ChatID,
		SenderID:          input.SenderID,
		Sender:            input.Sender,
		Text:              input.Text,
		ExternalMessageID: input.ExternalMessageID,
		Payload:           input.Payload,
	}
	m.messages[msg.ID] = msg
	return msg, true, nil
}

func (m *memRepo) FindByID(_ context.Context, id int64) (Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (m *memRepo) FindByChatAndExternalMessageID(_ context.Context, chatID int64, externalID string) (Message, error) {
	for _, msg := range m.messages {
		if msg.ChatID == chatID && msg.ExternalMessageID == externalID {
			return msg, nil
		}
	}
	return Message{}, ErrNotFound
}

func (m *memRepo) ListByChat(_ context.Context, filter ListFilter) ([]Message, error) {
	var out []Message
	for _, msg := range m.messages {
		if msg.ChatID == filter.ChatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memRepo) UpdatePayload(_ context.Context, id int64, payload map[string]any) error {
	msg, ok := m.messages[id]
	if !ok {
		return ErrNotFound
	}
	msg.Payload = payload
	m.messages[id] = msg
	return nil
}

func (m *memRepo) MarkRead(_ context.Context, _ int64, _ SenderType) error { return nil }

type memChatRepo struct {
	chats map[int64]chat.Chat
}

func (m *memChatRepo) FindByID(_ context.Context, id int64) (chat.Chat, error) {
	c, ok := m.chats[id]
	if !ok {
		return chat.Chat{}, chat.ErrNotFound
	}
	return c, nil
}

func (m *memChatRepo) FindBySourceAndExternalUser(_ context.Context, _ int64, _ string) (chat.Chat, error) {
	return chat.Chat{}, chat.ErrNotFound
}

func (m *memChatRepo) Create(_ context.Context, _ chat.CreateInput) (chat.Chat, error) {
	return chat.Chat{}, nil
}

func (m *memChatRepo) Update(_ context.Context, c chat.Chat) (chat.Chat, error) {
	m.chats[c.ID] = c
	return c, nil
}

func (m *memChatRepo) List(_ context.Context, _ chat.ListFilter) ([]chat.Chat, error) {
	return nil, nil
}

func (m *memChatRepo) Touch(_ context.Context, _ int64) error { return nil }

func (m *memChatRepo) CloseIdleBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type fakeSourceResolver struct {
	sources map[int64]source.Source
}

func (f *fakeSourceResolver) Get(_ context.Context, id int64) (source.Source, error) {
	src, ok := f.sources[id]
	if !ok {
		return source.Source{}, source.ErrNotFound
	}
	return src, nil
}

type recordingProvider struct {
	sent []string
	err  error
}

func (p *recordingProvider) SendMessage(_ context.Context, externalUserID, text string, _ map[string]any) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, externalUserID+":"+text)
	return nil
}

func (p *recordingProvider) ValidateWebhook(_ map[string]any) bool { return true }

type fixedFactory struct {
	provider messenger.Provider
}

func (f *fixedFactory) ForSource(_ source.Source) (messenger.Provider, error) {
	return f.provider, nil
}

type capturingPublisher struct {
	events []event.Event
}

func (c *capturingPublisher) Publish(evt event.Event) { c.events = append(c.events, evt) }

type fixture struct {
	svc      *Service
	repo     *memRepo
	provider *recordingProvider
	events   *capturingPublisher
}

func newFixture(t *testing.T, sources map[int64]source.Source) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	chatRepo := &memChatRepo{chats: map[int64]chat.Chat{
		1: {ID: 1, SourceID: 10, ExternalUserID: "777", Status: chat.StatusActive},
	}}
	repo := newMemRepo()
	provider := &recordingProvider{}
	events := &capturingPublisher{}
	svc := NewService(log, repo,
		chat.NewService(log, chatRepo, nil),
		&fakeSourceResolver{sources: sources},
		&fixedFactory{provider: provider},
		events)
	return &fixture{svc: svc, repo: repo, provider: provider, events: events}
}

func webSources() map[int64]source.Source {
	return map[int64]source.Source{
		10: {ID: 10, Type: source.TypeWeb},
	}
}

func TestCreatePublishesEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, webSources())
	stored, created, err := f.svc.Create(context.Background(), CreateInput{
		ChatID: 1, Sender: SenderClient, Text: "hi", ExternalMessageID: "501",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created {
		t.Fatal("expected a created message")
	}
	if stored.ID == 0 {
		t.Fatal("expected an assigned id")
	}
	if len(f.events.events) != 1 || f.events.events[0].Type != event.TypeNewChatMessage {
		t.Fatalf("expected one chat.message.created event, got %+v", f.events.events)
	}
}

func TestCreateDedupSkipsEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, webSources())
	input := CreateInput{ChatID: 1, Sender: SenderClient, Text: "hi", ExternalMessageID: "501"}
	first, _, err := f.svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, created, err := f.svc.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if created {
		t.Fatal("expected a dedup hit")
	}
	if first.ID != second.ID {
		t.Fatalf("dedup must return the stored row, got %d and %d", first.ID, second.ID)
	}
	if len(f.events.events) != 1 {
		t.Fatalf("a dedup hit must not publish, got %d events", len(f.events.events))
	}
}

func TestSendDeliversThroughProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t, webSources())
	stored, created, err := f.svc.Send(context.Background(), SendInput{
		ChatID: 1, SenderID: 5, Text: "how can I help?",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !created {
		t.Fatal("expected a created message")
	}
	if stored.Sender != SenderModerator {
		t.Fatalf("Send must default to the moderator sender, got %q", stored.Sender)
	}
	if len(f.provider.sent) != 1 || f.provider.sent[0] != "777:how can I help?" {
		t.Fatalf("unexpected deliveries %v", f.provider.sent)
	}
}

func TestSendClientMessageIDIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, webSources())
	input := SendInput{ChatID: 1, SenderID: 5, Text: "reply", ClientMessageID: "abc-123"}

	first, created, err := f.svc.Send(context.Background(), input)
	if err != nil || !created {
		t.Fatalf("first Send: created=%v err=%v", created, err)
	}
	second, created, err := f.svc.Send(context.Background(), input)
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if created {
		t.Fatal("a repeated client_message_id must not create")
	}
	if first.ID != second.ID {
		t.Fatalf("expected the stored message back, got %d and %d", first.ID, second.ID)
	}
	if len(f.provider.sent) != 1 {
		t.Fatalf("a repeated send must not redeliver, got %d deliveries", len(f.provider.sent))
	}
}

func TestSendMissingSourceSkipsDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t, map[int64]source.Source{})
	stored, created, err := f.svc.Send(context.Background(), SendInput{
		ChatID: 1, SenderID: 5, Text: "orphaned",
	})
	if err != nil {
		t.Fatalf("a deleted source must not fail the send, got %v", err)
	}
	if !created || stored.ID == 0 {
		t.Fatal("the message must still be recorded")
	}
	if len(f.provider.sent) != 0 {
		t.Fatal("delivery must be skipped when the source is gone")
	}
}

func TestSendPropagatesDeliveryError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, webSources())
	f.provider.err = &messenger.DeliveryError{Provider: "vk", Err: errors.New("api error 901")}

	stored, created, err := f.svc.Send(context.Background(), SendInput{
		ChatID: 1, SenderID: 5, Text: "reply",
	})
	var delivery *messenger.DeliveryError
	if !errors.As(err, &delivery) {
		t.Fatalf("expected DeliveryError, got %v", err)
	}
	if !created || stored.ID == 0 {
		t.Fatal("the message must be persisted even when delivery fails")
	}
}

func TestAppendAttachment(t *testing.T) {
	t.Parallel()

	f := newFixture(t, webSources())
	stored, _, err := f.svc.Create(context.Background(), CreateInput{
		ChatID: 1, Sender: SenderClient, Text: "photo",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, att := range []Attachment{
		{ID: "a1", Name: "one.jpg", MimeType: "image/jpeg", Size: 10, URL: "http://f/1"},
		{ID: "a2", Name: "two.jpg", MimeType: "image/jpeg", Size: 20, URL: "http://f/2"},
	} {
		if err := f.svc.AppendAttachment(context.Background(), stored.ID, att); err != nil {
			t.Fatalf("AppendAttachment: %v", err)
		}
	}

	got, err := f.svc.Get(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	atts := got.Attachments()
	if len(atts) != 2 {
		t.Fatalf("expected 2 attachments, got %d", len(atts))
	}
	if atts[0].ID != "a1" || atts[1].ID != "a2" {
		t.Fatalf("unexpected attachment order %+v", atts)
	}
}
