// Package stories presents the story strip data: a chunked live
// subscription over user documents, fanned out to respect the backend's
// 10-value whereIn limit.
package stories

import (
	"context"

	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/model"
	"go.uber.org/zap"
)

// Stories observes story fields on the users collection.
type Stories struct {
	users  docstore.Collection
	logger *zap.Logger
}

// New creates a story observer over the given store.
func New(store docstore.Store, logger *zap.Logger) *Stories {
	return &Stories{users: store.Collection("users"), logger: logger}
}

// ObserveFriendsStories partitions userIDs into chunks of at most 10 and
// registers one live subscription per chunk. Each chunk independently
// re-delivers its own full result list: fn runs once per chunk per
// logical update, carrying only that chunk's stories, not a merged view.
// Entries with a blank username or story url are filtered at the source.
// The returned handle cancels every chunk subscription.
func (st *Stories) ObserveFriendsStories(userIDs []string, fn func([]model.Story)) docstore.Subscription {
	if len(userIDs) == 0 {
		st.logger.Warn("no user ids provided to observe stories")
		fn(nil)
		return docstore.NewCancelFunc(func() {})
	}

	var subs docstore.MultiSubscription
	for _, chunk := range chunkIDs(userIDs, docstore.MaxInValues) {
		q, err := st.users.WhereIn("userId", chunk)
		if err != nil {
			// Unreachable for chunk sizes <= MaxInValues.
			st.logger.Error("story chunk query rejected", zap.Error(err))
			continue
		}
		subs = append(subs, q.Listen(func(snap docstore.QuerySnapshot) {
			if snap.Err != nil {
				st.logger.Error("story listener error", zap.Error(snap.Err))
				fn(nil)
				return
			}
			stories := make([]model.Story, 0, len(snap.Docs))
			for _, doc := range snap.Docs {
				name, _ := doc.Data["username"].(string)
				url, _ := doc.Data["storyUrl"].(string)
				if name == "" || url == "" {
					continue
				}
				stories = append(stories, model.Story{Name: name, URL: url})
			}
			fn(stories)
		}))
	}
	return subs
}

// AddToStory sets the story url on an existing user document. A missing
// document is log-only; nothing is created.
func (st *Stories) AddToStory(ctx context.Context, userID, url string) error {
	ref := st.users.Doc(userID)
	_, ok, err := ref.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		st.logger.Warn("no user document for story update", zap.String("user_id", userID))
		return nil
	}
	if err := ref.Update(ctx, "storyUrl", url); err != nil {
		return err
	}
	st.logger.Info("story url updated", zap.String("user_id", userID))
	return nil
}

// chunkIDs splits ids into runs of at most size, preserving order.
func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}
