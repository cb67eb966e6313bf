package screen

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/psantos/loro/internal/bus"
	"github.com/psantos/loro/internal/directory"
	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/files"
	"github.com/psantos/loro/internal/media"
	"github.com/psantos/loro/internal/model"
	"github.com/psantos/loro/internal/presence"
	"github.com/psantos/loro/internal/thread"
	"github.com/psantos/loro/internal/users"
	"go.uber.org/zap"
)

// ErrNotSignedIn is returned by screen commands that require a resolved
// signed-in user.
var ErrNotSignedIn = errors.New("screen: no signed-in user")

// ChatState is the immutable snapshot of one open conversation.
type ChatState struct {
	ChatID        string
	Loading       bool
	Chat          *model.Chat
	CurrentUser   *model.User
	Messages      []model.Message
	LastMessage   *model.Message
	PartnerTyping bool
	PartnerStatus string
	Err           string
}

func (s ChatState) clone() ChatState {
	out := s
	out.Messages = append([]model.Message(nil), s.Messages...)
	if s.Chat != nil {
		c := *s.Chat
		out.Chat = &c
	}
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		out.CurrentUser = &u
	}
	if s.LastMessage != nil {
		lm := *s.LastMessage
		out.LastMessage = &lm
	}
	return out
}

// ChatDeps bundles the collaborators of the conversation screen.
type ChatDeps struct {
	Users    *users.Repository
	Dir      *directory.Directory
	Thread   *thread.Thread
	Presence *presence.Protocol
	Uploader media.Uploader
	Bus      *bus.Bus
	CacheDir string
	Logger   *zap.Logger
}

// ChatModel reduces the message feed and partner presence into
// ChatState snapshots, and mirrors the local user's presence back into
// the chat record.
type ChatModel struct {
	users    *users.Repository
	dir      *directory.Directory
	thread   *thread.Thread
	presence *presence.Protocol
	uploader media.Uploader
	bus      *bus.Bus
	cacheDir string
	logger   *zap.Logger

	mu    sync.Mutex
	state ChatState
	out   stream[ChatState]
	subs  docstore.MultiSubscription

	closeOnce sync.Once
}

// NewChatModel creates the reducer for one conversation-screen lifetime.
func NewChatModel(d ChatDeps) *ChatModel {
	return &ChatModel{
		users:    d.Users,
		dir:      d.Dir,
		thread:   d.Thread,
		presence: d.Presence,
		uploader: d.Uploader,
		bus:      d.Bus,
		cacheDir: d.CacheDir,
		logger:   d.Logger,
		out:      newStream[ChatState](),
	}
}

func (m *ChatModel) update(f func(*ChatState)) {
	m.mu.Lock()
	f(&m.state)
	snap := m.state.clone()
	m.mu.Unlock()
	m.out.publish(snap)
}

// Snapshots returns the read-only state stream.
func (m *ChatModel) Snapshots() <-chan ChatState { return m.out.ch }

// State returns the current snapshot.
func (m *ChatModel) State() ChatState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Load resolves the chat record and the signed-in user, then subscribes
// the message feed and the partner's presence slot. It marks the local
// user present in the chat and keeps that flag honest across
// connectivity changes until Close.
func (m *ChatModel) Load(ctx context.Context, chatID string) error {
	m.update(func(s *ChatState) {
		s.ChatID = chatID
		s.Loading = true
	})

	cur := m.users.CurrentUser(ctx)
	if !cur.IsOk() {
		err := cur.Err()
		if err == nil {
			err = ErrNotSignedIn
		}
		m.update(func(s *ChatState) {
			s.Loading = false
			s.Err = err.Error()
		})
		return err
	}
	u := cur.Value()

	r := m.dir.GetChat(ctx, chatID)
	if r.Err() != nil {
		err := r.Err()
		m.update(func(s *ChatState) {
			s.Loading = false
			s.Err = err.Error()
		})
		return err
	}
	chat := r.Value()
	m.update(func(s *ChatState) {
		s.Loading = false
		s.Err = ""
		s.Chat = &chat
		s.CurrentUser = &u
	})

	m.subs = append(m.subs, m.thread.Subscribe(chatID, func(log model.MessageLog) {
		m.update(func(s *ChatState) {
			s.Messages = log.Messages
			if n := len(log.Messages); n > 0 {
				last := log.Messages[n-1]
				s.LastMessage = &last
			} else {
				s.LastMessage = nil
			}
		})
	}))

	m.subs = append(m.subs, m.presence.ObservePartner(chatID, u.UserID, func(p model.Presence) {
		m.update(func(s *ChatState) {
			s.PartnerTyping = p.IsTyping
			s.PartnerStatus = p.Status
		})
	}))

	if err := m.presence.SetStatus(ctx, chatID, u.UserID, true); err != nil {
		m.logger.Error("failed to mark user in chat", zap.Error(err))
	}
	m.watchConnectivity(chatID, u.UserID)
	return nil
}

// watchConnectivity mirrors every connectivity transition into the own
// status slot: offline marks the user away, reconnect restores the
// in-chat flag. The offline write races the link drop itself and may
// not reach the backend; that failure is logged and expected.
func (m *ChatModel) watchConnectivity(chatID, userID string) {
	events, unsub := m.bus.Subscribe("connectivity.", 8)
	done := make(chan struct{})
	m.subs = append(m.subs, docstore.NewCancelFunc(func() {
		unsub()
		close(done)
	}))
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				online, _ := ev.Payload.(bool)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := m.presence.SetStatus(ctx, chatID, userID, online); err != nil {
					m.logger.Warn("failed to mirror connectivity into status",
						zap.Bool("online", online), zap.Error(err))
				}
				cancel()
			}
		}
	}()
}

// SetTyping mirrors the local composer state into the chat record.
func (m *ChatModel) SetTyping(ctx context.Context, isTyping bool) {
	st := m.State()
	if st.CurrentUser == nil || st.ChatID == "" {
		return
	}
	if err := m.presence.SetTyping(ctx, st.ChatID, st.CurrentUser.UserID, isTyping); err != nil {
		m.logger.Warn("failed to set typing flag", zap.Error(err))
	}
}

// SendMessage appends a message to the thread and best-effort mirrors
// it into the directory's last-message slot.
func (m *ChatModel) SendMessage(ctx context.Context, text string, mediaURLs []string) error {
	st := m.State()
	if st.CurrentUser == nil {
		return ErrNotSignedIn
	}
	if strings.TrimSpace(text) == "" && len(mediaURLs) == 0 {
		return nil
	}
	msg := model.Message{
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
		Sender:    st.CurrentUser.Snapshot(),
		MediaURLs: mediaURLs,
	}
	if r := m.thread.Send(ctx, st.ChatID, *st.CurrentUser, msg); r.Err() != nil {
		return r.Err()
	}
	if r := m.dir.UpdateLastMessage(ctx, st.ChatID, msg); r.Err() != nil {
		m.logger.Warn("failed to mirror last message", zap.Error(r.Err()))
	}
	return nil
}

// UploadMedia stages and uploads each handle, returning the hosted
// urls. A handle that fails to stage or upload is skipped with a log.
func (m *ChatModel) UploadMedia(ctx context.Context, handles []string) []string {
	urls := make([]string, 0, len(handles))
	for _, h := range handles {
		name, staged, err := files.Stage(h, m.cacheDir)
		if err != nil {
			m.logger.Error("failed to stage media", zap.String("handle", h), zap.Error(err))
			continue
		}
		url, err := m.uploader.Upload(ctx, staged, files.IsVideoName(name))
		if err != nil || url == "" {
			m.logger.Error("media upload failed", zap.String("handle", h), zap.Error(err))
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// Close marks the user offline and releases every subscription. It is
// safe to call more than once.
func (m *ChatModel) Close() {
	m.closeOnce.Do(func() {
		st := m.State()
		if st.CurrentUser != nil && st.ChatID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := m.presence.SetStatus(ctx, st.ChatID, st.CurrentUser.UserID, false); err != nil {
				m.logger.Warn("failed to mark user offline", zap.Error(err))
			}
			cancel()
		}
		m.subs.Cancel()
	})
}
