// Package presence implements the two-party typing and status protocol.
// There is no separate presence service: each participant writes only its
// own slot of the shared chat record, and observes the partner's slot
// through the record listener.
package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/model"
	"go.uber.org/zap"
)

// Status strings written to the caller's own slot.
const (
	StatusInChat  = "In Chat"
	StatusOffline = "offline"
)

// ErrNotParticipant is returned when the caller's id matches neither slot
// of the chat record. The backend data is misconfigured; writes must not
// proceed silently.
var ErrNotParticipant = errors.New("presence: user is not a participant of this chat")

// ResolveSlots determines which participant slot belongs to userID.
// Equality is on the slot's embedded userId field, never on slot order.
// The first matching slot wins; two slots carrying the same id is a
// broken invariant, not a supported case.
func ResolveSlots(chat *model.Chat, userID string) (mine, theirs *model.UserSnapshot, err error) {
	if chat.User1 != nil && chat.User1.UserID == userID {
		return chat.User1, chat.User2, nil
	}
	if chat.User2 != nil && chat.User2.UserID == userID {
		return chat.User2, chat.User1, nil
	}
	return nil, nil, ErrNotParticipant
}

// slotField returns the document field prefix ("user1" or "user2") owned
// by userID.
func slotField(chat *model.Chat, userID string) (string, error) {
	if chat.User1 != nil && chat.User1.UserID == userID {
		return "user1", nil
	}
	if chat.User2 != nil && chat.User2.UserID == userID {
		return "user2", nil
	}
	return "", ErrNotParticipant
}

// Protocol performs slot-addressed presence writes against the chat
// directory collection.
type Protocol struct {
	chats  docstore.Collection
	logger *zap.Logger
}

// New creates a presence protocol over the given store.
func New(store docstore.Store, logger *zap.Logger) *Protocol {
	return &Protocol{chats: store.Collection("chats"), logger: logger}
}

// SetTyping writes isTyping to the caller's own slot. The slot is
// re-resolved from a fresh read on every call; the partner's slot is
// never touched.
func (p *Protocol) SetTyping(ctx context.Context, chatID, userID string, isTyping bool) error {
	field, err := p.resolveOwnField(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if err := p.chats.Doc(chatID).Update(ctx, field+".isTyping", isTyping); err != nil {
		return fmt.Errorf("presence: set typing: %w", err)
	}
	return nil
}

// SetStatus writes "In Chat" or "offline" to the caller's own slot.
// Called on chat-screen entry/exit and on every connectivity transition.
func (p *Protocol) SetStatus(ctx context.Context, chatID, userID string, online bool) error {
	field, err := p.resolveOwnField(ctx, chatID, userID)
	if err != nil {
		return err
	}
	status := StatusOffline
	if online {
		status = StatusInChat
	}
	if err := p.chats.Doc(chatID).Update(ctx, field+".status", status); err != nil {
		return fmt.Errorf("presence: set status: %w", err)
	}
	p.logger.Info("status updated",
		zap.String("chat_id", chatID),
		zap.String("status", status))
	return nil
}

func (p *Protocol) resolveOwnField(ctx context.Context, chatID, userID string) (string, error) {
	doc, ok, err := p.chats.Doc(chatID).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("presence: read chat %q: %w", chatID, err)
	}
	if !ok {
		return "", fmt.Errorf("presence: chat %q not found", chatID)
	}
	var chat model.Chat
	if err := docstore.Decode(doc, &chat); err != nil {
		return "", err
	}
	field, err := slotField(&chat, userID)
	if err != nil {
		return "", fmt.Errorf("%w: chat %q, user %q", err, chatID, userID)
	}
	return field, nil
}

// ObservePartner listens to the chat record and emits the partner slot's
// {isTyping, status} on every update. Slot resolution is re-evaluated per
// snapshot. Absent slots or missing optional fields emit {false, ""}
// defaults; listener errors are logged, never surfaced to the UI.
func (p *Protocol) ObservePartner(chatID, selfUserID string, fn func(model.Presence)) docstore.Subscription {
	return p.chats.Doc(chatID).Listen(func(snap docstore.DocSnapshot) {
		if snap.Err != nil {
			p.logger.Error("partner listener error",
				zap.String("chat_id", chatID), zap.Error(snap.Err))
			return
		}
		if !snap.Exists {
			return
		}
		slot, ok := partnerSlot(snap.Doc.Data, selfUserID)
		if !ok {
			p.logger.Warn("self matches neither slot",
				zap.String("chat_id", chatID), zap.String("user_id", selfUserID))
			return
		}
		fn(model.Presence{
			IsTyping: boolField(slot, "isTyping"),
			Status:   stringField(slot, "status"),
		})
	})
}

// partnerSlot picks the slot whose userId does NOT equal selfUserID.
// Untyped field access on purpose: a half-written slot must still yield
// defaults instead of a decode error.
func partnerSlot(data map[string]any, selfUserID string) (map[string]any, bool) {
	u1, _ := data["user1"].(map[string]any)
	u2, _ := data["user2"].(map[string]any)
	switch {
	case u1 != nil && stringField(u1, "userId") == selfUserID:
		if u2 == nil {
			return map[string]any{}, true
		}
		return u2, true
	case u2 != nil && stringField(u2, "userId") == selfUserID:
		if u1 == nil {
			return map[string]any{}, true
		}
		return u1, true
	default:
		return nil, false
	}
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}
