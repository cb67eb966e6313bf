package docstore

import (
	"errors"
	"testing"

	"github.com/psantos/loro/internal/model"
)

func TestDecodeChat(t *testing.T) {
	doc := Document{
		ID: "c1",
		Data: map[string]any{
			"chatId": "c1",
			"user1":  map[string]any{"userId": "a", "username": "ana", "isTyping": true},
			"user2":  map[string]any{"userId": "b", "username": "bea"},
		},
	}

	var chat model.Chat
	if err := Decode(doc, &chat); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if chat.ChatID != "c1" {
		t.Errorf("ChatID = %q, want c1", chat.ChatID)
	}
	if chat.User1 == nil || !chat.User1.IsTyping {
		t.Error("user1.isTyping not decoded")
	}
	if chat.User2 == nil || chat.User2.Username != "bea" {
		t.Error("user2.username not decoded")
	}
	if chat.LastMessage != nil {
		t.Error("absent lastMessage decoded as non-nil")
	}
}

func TestDecodeShapeMismatch(t *testing.T) {
	doc := Document{
		ID:   "bad",
		Data: map[string]any{"chatId": 42, "user1": "not a map"},
	}

	var chat model.Chat
	err := Decode(doc, &chat)
	if err == nil {
		t.Fatal("Decode() of mismatched shape did not error")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
	if de.ID != "bad" {
		t.Errorf("DecodeError.ID = %q, want bad", de.ID)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	chat := model.Chat{
		ChatID: "c1",
		User1:  &model.UserSnapshot{UserID: "a", Username: "ana"},
		User2:  &model.UserSnapshot{UserID: "b", Status: "offline"},
	}

	data, err := Encode(chat)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var back model.Chat
	if err := Decode(Document{ID: "c1", Data: data}, &back); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if back.User1.UserID != "a" || back.User2.Status != "offline" {
		t.Errorf("round trip mismatch: %+v", back)
	}
}
