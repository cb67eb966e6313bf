package screen

import (
	"context"
	"sync"

	"github.com/psantos/loro/internal/model"
	"github.com/psantos/loro/internal/users"
	"go.uber.org/zap"
)

// SignInState is the immutable snapshot of the sign-in screen.
type SignInState struct {
	Successful bool
	Err        string
}

// SignInModel records the outcome of an external sign-in attempt and
// mirrors the resulting profile into the user directory.
type SignInModel struct {
	users  *users.Repository
	logger *zap.Logger

	mu    sync.Mutex
	state SignInState
	out   stream[SignInState]
}

// NewSignInModel creates the reducer for the sign-in screen.
func NewSignInModel(repo *users.Repository, logger *zap.Logger) *SignInModel {
	return &SignInModel{
		users:  repo,
		logger: logger,
		out:    newStream[SignInState](),
	}
}

// Snapshots returns the read-only state stream.
func (m *SignInModel) Snapshots() <-chan SignInState { return m.out.ch }

// State returns the current snapshot.
func (m *SignInModel) State() SignInState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SignInModel) set(s SignInState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.out.publish(s)
}

// OnSignInResult applies the outcome of an authentication attempt. On
// success the profile is upserted so the directory record exists before
// any screen reads it; existing story urls survive the upsert.
func (m *SignInModel) OnSignInResult(ctx context.Context, user model.User, signInErr error) error {
	if signInErr != nil {
		m.logger.Warn("sign-in failed", zap.Error(signInErr))
		m.set(SignInState{Err: signInErr.Error()})
		return signInErr
	}
	if err := m.users.Upsert(ctx, user); err != nil {
		m.logger.Error("failed to upsert profile", zap.String("user_id", user.UserID), zap.Error(err))
		m.set(SignInState{Err: err.Error()})
		return err
	}
	m.logger.Info("signed in", zap.String("user_id", user.UserID))
	m.set(SignInState{Successful: true})
	return nil
}
