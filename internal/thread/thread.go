// Package thread streams the message log of one chat and appends to it.
// The log lives in a single document keyed by the chat id; every listener
// delivery carries the entire decoded sequence.
package thread

import (
	"context"
	"fmt"

	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/model"
	"github.com/psantos/loro/internal/result"
	"go.uber.org/zap"
)

// Thread syncs the per-chat message log collection.
type Thread struct {
	details docstore.Collection
	logger  *zap.Logger
}

// New creates a thread syncer over the given store.
func New(store docstore.Store, logger *zap.Logger) *Thread {
	return &Thread{details: store.Collection("chat_details"), logger: logger}
}

// Subscribe listens on the message log for chatID. fn receives the full
// decoded record on every change, in backend write order. A record that
// does not exist yet delivers nothing; it appears on first send.
func (t *Thread) Subscribe(chatID string, fn func(model.MessageLog)) docstore.Subscription {
	return t.details.Doc(chatID).Listen(func(snap docstore.DocSnapshot) {
		if snap.Err != nil {
			t.logger.Error("message listener error",
				zap.String("chat_id", chatID), zap.Error(snap.Err))
			return
		}
		if !snap.Exists {
			return
		}
		var log model.MessageLog
		if err := docstore.Decode(snap.Doc, &log); err != nil {
			t.logger.Warn("skipping undecodable message log", zap.Error(err))
			return
		}
		fn(log)
	})
}

// Send appends msg to the chat's log, creating the log on first message.
// Read-check-write: existing records take an atomic array-union append,
// so two concurrent senders interleave instead of clobbering each other.
// Two near-simultaneous first sends race on creation; one Set wins and
// the loser's stale-read branch may overwrite it. That race is inherited
// backend behavior, not guarded here.
func (t *Thread) Send(ctx context.Context, chatID string, sender model.User, msg model.Message) result.Result[result.Unit] {
	ref := t.details.Doc(chatID)

	_, exists, err := ref.Get(ctx)
	if err != nil {
		return result.Fail[result.Unit](fmt.Errorf("thread: read log %q: %w", chatID, err))
	}

	if exists {
		value, err := docstore.EncodeValue(msg)
		if err != nil {
			return result.Fail[result.Unit](err)
		}
		if err := ref.Update(ctx, "messages", docstore.ArrayUnion(value)); err != nil {
			return result.Fail[result.Unit](fmt.Errorf("thread: append message: %w", err))
		}
		return result.OkUnit()
	}

	log := model.MessageLog{
		ChatID:   chatID,
		Sender:   sender.Snapshot(),
		Messages: []model.Message{msg},
	}
	data, err := docstore.Encode(log)
	if err != nil {
		return result.Fail[result.Unit](err)
	}
	if err := ref.Set(ctx, data); err != nil {
		return result.Fail[result.Unit](fmt.Errorf("thread: create log: %w", err))
	}
	t.logger.Info("message log created", zap.String("chat_id", chatID))
	return result.OkUnit()
}
