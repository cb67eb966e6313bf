// Package directory keeps the set of chats a user belongs to in sync
// with the backend. Membership is a boolean-OR query over the two
// participant slots, so a user is found regardless of slot order.
// Deliveries are full-snapshot replacements, never diffs.
package directory

import (
	"context"
	"fmt"

	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/model"
	"github.com/psantos/loro/internal/result"
	"go.uber.org/zap"
)

// Directory syncs the chat list collection.
type Directory struct {
	chats  docstore.Collection
	logger *zap.Logger
}

// New creates a directory over the given store.
func New(store docstore.Store, logger *zap.Logger) *Directory {
	return &Directory{chats: store.Collection("chats"), logger: logger}
}

func (d *Directory) membership(userID string) docstore.Query {
	return d.chats.WhereAny(
		docstore.Eq("user1.userId", userID),
		docstore.Eq("user2.userId", userID),
	)
}

// SubscribeChats registers a live membership query for userID. Every
// invocation of fn carries the authoritative complete list; records that
// fail to decode are dropped from the batch, never fatal to it.
func (d *Directory) SubscribeChats(userID string, fn func([]model.Chat)) docstore.Subscription {
	return d.membership(userID).Listen(func(snap docstore.QuerySnapshot) {
		if snap.Err != nil {
			d.logger.Error("chat list listener error",
				zap.String("user_id", userID), zap.Error(snap.Err))
			return
		}
		chats := make([]model.Chat, 0, len(snap.Docs))
		for _, doc := range snap.Docs {
			var chat model.Chat
			if err := docstore.Decode(doc, &chat); err != nil {
				d.logger.Warn("dropping undecodable chat record", zap.Error(err))
				continue
			}
			chats = append(chats, chat)
		}
		fn(chats)
	})
}

// CreateChat allocates a fresh id from the store and writes the record
// with that id injected. The caller is responsible for checking that no
// existing chat already covers the pair; the backend does not enforce it.
func (d *Directory) CreateChat(ctx context.Context, chat model.Chat) result.Result[result.Unit] {
	id := d.chats.NewID()
	chat.ChatID = id
	data, err := docstore.Encode(chat)
	if err != nil {
		return result.Fail[result.Unit](err)
	}
	if err := d.chats.Doc(id).Set(ctx, data); err != nil {
		return result.Fail[result.Unit](fmt.Errorf("directory: create chat: %w", err))
	}
	d.logger.Info("chat created", zap.String("chat_id", id))
	return result.OkUnit()
}

// GetChat fetches a single directory record. A missing record is a
// Failure carrying a message, so callers can render it; it is never
// conflated with a successful nil.
func (d *Directory) GetChat(ctx context.Context, chatID string) result.Result[model.Chat] {
	doc, ok, err := d.chats.Doc(chatID).Get(ctx)
	if err != nil {
		return result.Fail[model.Chat](fmt.Errorf("directory: fetch chat %q: %w", chatID, err))
	}
	if !ok {
		return result.Fail[model.Chat](fmt.Errorf("chat document %q not found", chatID))
	}
	var chat model.Chat
	if err := docstore.Decode(doc, &chat); err != nil {
		return result.Fail[model.Chat](err)
	}
	return result.Ok(chat)
}

// UpdateLastMessage mirrors the newest message into the directory record
// for list previews. Best effort: a missing record is a silent no-op
// returning success.
func (d *Directory) UpdateLastMessage(ctx context.Context, chatID string, msg model.Message) result.Result[result.Unit] {
	ref := d.chats.Doc(chatID)
	_, ok, err := ref.Get(ctx)
	if err != nil {
		return result.Fail[result.Unit](fmt.Errorf("directory: read chat %q: %w", chatID, err))
	}
	if !ok {
		return result.OkUnit()
	}
	value, err := docstore.EncodeValue(msg)
	if err != nil {
		return result.Fail[result.Unit](err)
	}
	if err := ref.Update(ctx, "lastMessage", value); err != nil {
		return result.Fail[result.Unit](fmt.Errorf("directory: update last message: %w", err))
	}
	return result.OkUnit()
}

// AllFriends re-runs the membership query and extracts the other
// participant's id from each record. Duplicates are possible when more
// than one chat exists between the same pair; no dedup is applied.
func (d *Directory) AllFriends(ctx context.Context, userID string) ([]string, error) {
	docs, err := d.membership(userID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("directory: fetch friends: %w", err)
	}
	var friends []string
	for _, doc := range docs {
		var chat model.Chat
		if err := docstore.Decode(doc, &chat); err != nil {
			d.logger.Warn("dropping undecodable chat record", zap.Error(err))
			continue
		}
		if chat.User1 != nil && chat.User1.UserID != userID {
			friends = append(friends, chat.User1.UserID)
		}
		if chat.User2 != nil && chat.User2.UserID != userID {
			friends = append(friends, chat.User2.UserID)
		}
	}
	return friends, nil
}
