package screen

import (
	"context"
	"sync"
	"time"

	"github.com/psantos/loro/internal/bus"
	"github.com/psantos/loro/internal/directory"
	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/files"
	"github.com/psantos/loro/internal/media"
	"github.com/psantos/loro/internal/model"
	"github.com/psantos/loro/internal/stories"
	"github.com/psantos/loro/internal/users"
	"go.uber.org/zap"
)

// HomeState is the immutable snapshot of the conversation-list screen.
type HomeState struct {
	CurrentUser     *model.User
	Chats           []model.Chat
	Stories         []model.Story
	IsAddingToStory bool
	Err             string
}

func (s HomeState) clone() HomeState {
	out := s
	out.Chats = append([]model.Chat(nil), s.Chats...)
	out.Stories = append([]model.Story(nil), s.Stories...)
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		out.CurrentUser = &u
	}
	return out
}

// HomeModel reduces directory and story feeds into HomeState snapshots.
type HomeModel struct {
	users    *users.Repository
	dir      *directory.Directory
	stories  *stories.Stories
	uploader media.Uploader
	bus      *bus.Bus
	cacheDir string
	logger   *zap.Logger

	mu    sync.Mutex
	state HomeState
	out   stream[HomeState]
	subs  docstore.MultiSubscription
}

// HomeDeps bundles the collaborators of the home screen.
type HomeDeps struct {
	Users    *users.Repository
	Dir      *directory.Directory
	Stories  *stories.Stories
	Uploader media.Uploader
	Bus      *bus.Bus
	CacheDir string
	Logger   *zap.Logger
}

// NewHomeModel creates the reducer for one home-screen lifetime.
func NewHomeModel(d HomeDeps) *HomeModel {
	return &HomeModel{
		users:    d.Users,
		dir:      d.Dir,
		stories:  d.Stories,
		uploader: d.Uploader,
		bus:      d.Bus,
		cacheDir: d.CacheDir,
		logger:   d.Logger,
		out:      newStream[HomeState](),
	}
}

// update applies f under the lock and publishes the resulting snapshot.
func (m *HomeModel) update(f func(*HomeState)) {
	m.mu.Lock()
	f(&m.state)
	snap := m.state.clone()
	m.mu.Unlock()
	m.out.publish(snap)
}

// Snapshots returns the read-only state stream.
func (m *HomeModel) Snapshots() <-chan HomeState { return m.out.ch }

// State returns the current snapshot.
func (m *HomeModel) State() HomeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Start resolves the signed-in user and subscribes the chat list. Every
// chat-list delivery replaces the whole list.
func (m *HomeModel) Start(ctx context.Context) error {
	cur := m.users.CurrentUser(ctx)
	if cur.Err() != nil {
		m.update(func(s *HomeState) { s.Err = cur.Err().Error() })
		return cur.Err()
	}
	if cur.IsNotFound() {
		m.logger.Warn("no signed-in user for home screen")
		return nil
	}
	u := cur.Value()
	m.update(func(s *HomeState) { s.CurrentUser = &u })

	sub := m.dir.SubscribeChats(u.UserID, func(chats []model.Chat) {
		m.update(func(s *HomeState) { s.Chats = chats })
	})
	m.subs = append(m.subs, sub)
	return nil
}

// ObserveFriendsStories derives the friends list from chat membership
// and fans out the chunked story subscription. Each chunk delivery
// rebuilds the strip from scratch via MergeStories.
func (m *HomeModel) ObserveFriendsStories(ctx context.Context) error {
	st := m.State()
	if st.CurrentUser == nil {
		m.logger.Warn("stories requested before sign-in resolved")
		return nil
	}
	uid := st.CurrentUser.UserID
	username := st.CurrentUser.Username

	friends, err := m.dir.AllFriends(ctx, uid)
	if err != nil {
		m.logger.Error("failed to fetch friends", zap.Error(err))
		return err
	}
	if len(friends) == 0 {
		m.logger.Info("no friends found", zap.String("user_id", uid))
		return nil
	}

	sub := m.stories.ObserveFriendsStories(append(friends, uid), func(batch []model.Story) {
		merged := MergeStories(batch, username)
		m.update(func(s *HomeState) { s.Stories = merged })
	})
	m.subs = append(m.subs, sub)
	return nil
}

// InviteUserToChat creates a chat between the signed-in user and the
// user behind email. An unknown email is a log-only path: no record is
// created and no error surfaces to the UI.
func (m *HomeModel) InviteUserToChat(ctx context.Context, email string) {
	cur := m.users.CurrentUser(ctx)
	if !cur.IsOk() {
		m.logger.Error("invite without a signed-in user", zap.Error(cur.Err()))
		return
	}
	invited := m.users.FindByEmail(ctx, email)
	if invited.IsNotFound() {
		m.logger.Info("invited user not found", zap.String("email", email))
		return
	}
	if invited.Err() != nil {
		m.logger.Error("invite lookup failed", zap.Error(invited.Err()))
		return
	}

	me := cur.Value().Snapshot()
	them := invited.Value().Snapshot()
	chat := model.Chat{User1: &me, User2: &them}

	if r := m.dir.CreateChat(ctx, chat); r.Err() != nil {
		m.logger.Error("failed to create chat", zap.Error(r.Err()))
		return
	}
	m.bus.Publish(bus.Event{
		Kind:      "chat.created",
		Timestamp: time.Now(),
		Payload:   map[string]string{"user1": me.UserID, "user2": them.UserID},
	})
}

// AddImageToStory stages the handle, uploads it, and points the user's
// story url at the hosted asset. Failures are logged, never surfaced.
func (m *HomeModel) AddImageToStory(ctx context.Context, handle string) {
	m.update(func(s *HomeState) { s.IsAddingToStory = true })
	defer m.update(func(s *HomeState) { s.IsAddingToStory = false })

	st := m.State()
	if st.CurrentUser == nil {
		m.logger.Warn("story upload before sign-in resolved")
		return
	}

	name, staged, err := files.Stage(handle, m.cacheDir)
	if err != nil {
		m.logger.Error("failed to stage story media", zap.Error(err))
		return
	}
	url, err := m.uploader.Upload(ctx, staged, files.IsVideoName(name))
	if err != nil || url == "" {
		m.logger.Error("story upload failed", zap.Error(err))
		return
	}
	if err := m.stories.AddToStory(ctx, st.CurrentUser.UserID, url); err != nil {
		m.logger.Error("failed to update story url", zap.Error(err))
		return
	}
	m.bus.Publish(bus.Event{
		Kind:      "story.updated",
		Timestamp: time.Now(),
		Payload:   st.CurrentUser.UserID,
	})
}

// Close releases every subscription held by the screen.
func (m *HomeModel) Close() {
	m.subs.Cancel()
}
