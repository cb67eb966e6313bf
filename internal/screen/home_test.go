package screen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/psantos/loro/internal/auth"
	"github.com/psantos/loro/internal/bus"
	"github.com/psantos/loro/internal/directory"
	"github.com/psantos/loro/internal/docstore/memstore"
	"github.com/psantos/loro/internal/presence"
	"github.com/psantos/loro/internal/stories"
	"github.com/psantos/loro/internal/thread"
	"github.com/psantos/loro/internal/users"
	"go.uber.org/zap"
)

type env struct {
	store    *memstore.Store
	bus      *bus.Bus
	users    *users.Repository
	dir      *directory.Directory
	stories  *stories.Stories
	thread   *thread.Thread
	presence *presence.Protocol
	uploader *fakeUploader
	cacheDir string
}

type fakeUploader struct {
	url    string
	err    error
	videos []bool
}

func (f *fakeUploader) Upload(_ context.Context, _ string, isVideo bool) (string, error) {
	f.videos = append(f.videos, isVideo)
	return f.url, f.err
}

func newEnv(t *testing.T, selfID string) *env {
	t.Helper()
	s := memstore.New()
	logger := zap.NewNop()
	return &env{
		store:    s,
		bus:      bus.New(),
		users:    users.New(s, auth.Static{UserID: selfID}, logger),
		dir:      directory.New(s, logger),
		stories:  stories.New(s, logger),
		thread:   thread.New(s, logger),
		presence: presence.New(s, logger),
		uploader: &fakeUploader{url: "https://cdn/asset"},
		cacheDir: t.TempDir(),
	}
}

func (e *env) seedUser(t *testing.T, id, email, username, storyURL string) {
	t.Helper()
	err := e.store.Collection("users").Doc(id).Set(context.Background(), map[string]any{
		"userId":   id,
		"email":    email,
		"username": username,
		"storyUrl": storyURL,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (e *env) seedChat(t *testing.T, chatID, uid1, uid2 string) {
	t.Helper()
	err := e.store.Collection("chats").Doc(chatID).Set(context.Background(), map[string]any{
		"chatId": chatID,
		"user1":  map[string]any{"userId": uid1, "username": "user-" + uid1},
		"user2":  map[string]any{"userId": uid2, "username": "user-" + uid2},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (e *env) homeModel() *HomeModel {
	return NewHomeModel(HomeDeps{
		Users:    e.users,
		Dir:      e.dir,
		Stories:  e.stories,
		Uploader: e.uploader,
		Bus:      e.bus,
		CacheDir: e.cacheDir,
		Logger:   zap.NewNop(),
	})
}

func TestHomeStartTracksChatList(t *testing.T) {
	e := newEnv(t, "me")
	e.seedUser(t, "me", "me@x", "ana", "")
	e.seedUser(t, "bob", "bob@x", "bob", "")

	m := e.homeModel()
	defer m.Close()
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	st := m.State()
	if st.CurrentUser == nil || st.CurrentUser.UserID != "me" {
		t.Fatalf("CurrentUser = %+v, want me", st.CurrentUser)
	}
	if len(st.Chats) != 0 {
		t.Fatalf("initial chats = %d, want 0", len(st.Chats))
	}

	e.seedChat(t, "c1", "me", "bob")
	st = m.State()
	if len(st.Chats) != 1 || st.Chats[0].ChatID != "c1" {
		t.Errorf("chats after create = %+v, want [c1]", st.Chats)
	}
}

func TestHomeStartWithoutSignInLeavesStateEmpty(t *testing.T) {
	e := newEnv(t, "")
	m := e.homeModel()
	defer m.Close()

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start without sign-in error = %v, want nil", err)
	}
	if st := m.State(); st.CurrentUser != nil || st.Err != "" {
		t.Errorf("state = %+v, want empty", st)
	}
}

func TestInviteUnknownEmailCreatesNothing(t *testing.T) {
	e := newEnv(t, "me")
	e.seedUser(t, "me", "me@x", "ana", "")

	m := e.homeModel()
	defer m.Close()
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	m.InviteUserToChat(context.Background(), "ghost@x")

	st := m.State()
	if len(st.Chats) != 0 {
		t.Errorf("chats = %+v, want none for an unknown email", st.Chats)
	}
	if st.Err != "" {
		t.Errorf("Err = %q, want empty (unknown email is log-only)", st.Err)
	}
}

func TestInviteKnownEmailCreatesChat(t *testing.T) {
	e := newEnv(t, "me")
	e.seedUser(t, "me", "me@x", "ana", "")
	e.seedUser(t, "bob", "bob@x", "bob", "")

	m := e.homeModel()
	defer m.Close()
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	events, unsub := e.bus.Subscribe("chat.", 1)
	defer unsub()

	m.InviteUserToChat(context.Background(), "bob@x")

	st := m.State()
	if len(st.Chats) != 1 {
		t.Fatalf("chats = %d, want 1", len(st.Chats))
	}
	chat := st.Chats[0]
	if chat.ChatID == "" {
		t.Error("created chat has no id")
	}
	if chat.User1 == nil || chat.User1.UserID != "me" {
		t.Errorf("user1 = %+v, want me", chat.User1)
	}
	if chat.User2 == nil || chat.User2.UserID != "bob" {
		t.Errorf("user2 = %+v, want bob", chat.User2)
	}

	select {
	case ev := <-events:
		if ev.Kind != "chat.created" {
			t.Errorf("event kind = %q, want chat.created", ev.Kind)
		}
	default:
		t.Error("no chat.created event published")
	}
}

func TestObserveFriendsStoriesMergesSelfForward(t *testing.T) {
	e := newEnv(t, "me")
	e.seedUser(t, "me", "me@x", "ana", "https://cdn/ana")
	e.seedUser(t, "bob", "bob@x", "bob", "https://cdn/bob")
	e.seedChat(t, "c1", "me", "bob")

	m := e.homeModel()
	defer m.Close()
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.ObserveFriendsStories(context.Background()); err != nil {
		t.Fatal(err)
	}

	st := m.State()
	if len(st.Stories) != 3 {
		t.Fatalf("stories = %+v, want placeholder + ana + bob", st.Stories)
	}
	if st.Stories[0].Name != AddStoryName {
		t.Errorf("stories[0] = %+v, want the %q entry", st.Stories[0], AddStoryName)
	}
	if st.Stories[1].Name != "ana" {
		t.Errorf("stories[1] = %+v, want self first after the placeholder", st.Stories[1])
	}
}

func TestAddImageToStorySetsStoryURL(t *testing.T) {
	e := newEnv(t, "me")
	e.seedUser(t, "me", "me@x", "ana", "")

	m := e.homeModel()
	defer m.Close()
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	handle := filepath.Join(t.TempDir(), "sunset.mp4")
	if err := os.WriteFile(handle, []byte("frames"), 0600); err != nil {
		t.Fatal(err)
	}

	m.AddImageToStory(context.Background(), handle)

	if got := m.State().IsAddingToStory; got {
		t.Error("IsAddingToStory still true after upload finished")
	}
	if len(e.uploader.videos) != 1 || !e.uploader.videos[0] {
		t.Errorf("upload video flags = %v, want one video upload", e.uploader.videos)
	}

	doc, ok, err := e.store.Collection("users").Doc("me").Get(context.Background())
	if err != nil || !ok {
		t.Fatalf("Get(me) = %v, %v", ok, err)
	}
	if got := doc.Data["storyUrl"]; got != "https://cdn/asset" {
		t.Errorf("storyUrl = %v, want the hosted url", got)
	}
}
