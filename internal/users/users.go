// Package users reads and writes user profile documents.
package users

import (
	"context"
	"fmt"

	"github.com/psantos/loro/internal/auth"
	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/model"
	"github.com/psantos/loro/internal/result"
	"go.uber.org/zap"
)

// Repository queries the users collection.
type Repository struct {
	users  docstore.Collection
	auth   auth.Provider
	logger *zap.Logger
}

// New creates a user repository over the given store.
func New(store docstore.Store, provider auth.Provider, logger *zap.Logger) *Repository {
	return &Repository{users: store.Collection("users"), auth: provider, logger: logger}
}

// CurrentUser resolves the signed-in user's profile document. NotFound
// when nobody is signed in or no document matches the auth id; callers
// map a Failure to a user-visible error state.
func (r *Repository) CurrentUser(ctx context.Context) result.Result[model.User] {
	uid, ok := r.auth.CurrentUserID()
	if !ok {
		return result.Missing[model.User]()
	}
	return r.findOne(ctx, "userId", uid)
}

// FindByEmail looks a user up by email. NotFound on miss; the invite flow
// treats that as a log-only outcome, not an error.
func (r *Repository) FindByEmail(ctx context.Context, email string) result.Result[model.User] {
	return r.findOne(ctx, "email", email)
}

func (r *Repository) findOne(ctx context.Context, field, value string) result.Result[model.User] {
	docs, err := r.users.WhereAny(docstore.Eq(field, value)).Get(ctx)
	if err != nil {
		return result.Fail[model.User](fmt.Errorf("users: query %s: %w", field, err))
	}
	if len(docs) == 0 {
		return result.Missing[model.User]()
	}
	var u model.User
	if err := docstore.Decode(docs[0], &u); err != nil {
		return result.Fail[model.User](err)
	}
	return result.Ok(u)
}

// Upsert writes the sign-in profile fields for user, keyed by its id.
// An existing document takes field-level updates so fields outside the
// profile (the story url) survive; a new document is created wholesale.
func (r *Repository) Upsert(ctx context.Context, user model.User) error {
	if user.UserID == "" {
		return fmt.Errorf("users: upsert without a user id")
	}
	fields := map[string]any{
		"userId":            user.UserID,
		"email":             user.Email,
		"username":          user.Username,
		"profilePictureUrl": user.ProfileURL,
		"bio":               user.Bio,
	}

	ref := r.users.Doc(user.UserID)
	_, exists, err := ref.Get(ctx)
	if err != nil {
		return fmt.Errorf("users: read profile: %w", err)
	}
	if !exists {
		if err := ref.Set(ctx, fields); err != nil {
			return fmt.Errorf("users: create profile: %w", err)
		}
		r.logger.Info("user profile created", zap.String("user_id", user.UserID))
		return nil
	}
	for field, value := range fields {
		if err := ref.Update(ctx, field, value); err != nil {
			return fmt.Errorf("users: update %s: %w", field, err)
		}
	}
	r.logger.Info("user profile updated", zap.String("user_id", user.UserID))
	return nil
}
