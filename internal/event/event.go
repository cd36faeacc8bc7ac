// Package event carries the domain events emitted by the chat core and a
// small in-process hub that fans them out to listeners (broker relay, tests).
package event

import "encoding/json"

// Type identifies the kind of domain event.
type Type string

const (
	// TypeNewChatMessage fires when a message is persisted for the first
	// time. Dedup hits do not fire it.
	TypeNewChatMessage Type = "chat.message.created"
	// TypeChatAssigned fires when a chat is assigned to a moderator.
	TypeChatAssigned Type = "chat.assigned"
)

// Event is a typed domain event with a JSON body.
type Event struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewChatMessage is the body of a TypeNewChatMessage event.
type NewChatMessage struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

// ChatAssigned is the body of a TypeChatAssigned event.
type ChatAssigned struct {
	ChatID           int64 `json:"chat_id"`
	AssignedToUserID int64 `json:"assigned_to_user_id"`
}

// NewChatMessageEvent builds a TypeNewChatMessage event.
func NewChatMessageEvent(chatID, messageID int64, text string) Event {
	body, _ := json.Marshal(NewChatMessage{ChatID: chatID, MessageID: messageID, Text: text})
	return Event{Type: TypeNewChatMessage, Data: body}
}

// ChatAssignedEvent builds a TypeChatAssigned event.
func ChatAssignedEvent(chatID, userID int64) Event {
	body, _ := json.Marshal(ChatAssigned{ChatID: chatID, AssignedToUserID: userID})
	return Event{Type: TypeChatAssigned, Data: body}
}

// Publisher receives domain events. The hub implements it; services depend
// on the interface so tests can capture events directly.
type Publisher interface {
	Publish(evt Event)
}
