package directory

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/psantos/loro/internal/docstore"
	"github.com/psantos/loro/internal/docstore/memstore"
	"github.com/psantos/loro/internal/model"
	"github.com/psantos/loro/internal/result"
	"go.uber.org/zap"
)

func pairChat(a, b string) model.Chat {
	return model.Chat{
		User1: &model.UserSnapshot{UserID: a, Username: "user-" + a},
		User2: &model.UserSnapshot{UserID: b, Username: "user-" + b},
	}
}

func TestCreateChatAllocatesID(t *testing.T) {
	s := memstore.New()
	d := New(s, zap.NewNop())
	ctx := context.Background()

	if r := d.CreateChat(ctx, pairChat("a", "b")); !r.IsOk() {
		t.Fatalf("CreateChat() = %v", r.Err())
	}

	docs, err := s.Collection("chats").WhereAny(docstore.Eq("user1.userId", "a")).Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d records, want 1", len(docs))
	}
	var chat model.Chat
	if err := docstore.Decode(docs[0], &chat); err != nil {
		t.Fatal(err)
	}
	if chat.ChatID == "" {
		t.Error("record written without an allocated chatId")
	}
	if chat.ChatID != docs[0].ID {
		t.Errorf("embedded chatId %q != document id %q", chat.ChatID, docs[0].ID)
	}
}

func TestMembershipSymmetric(t *testing.T) {
	s := memstore.New()
	d := New(s, zap.NewNop())
	ctx := context.Background()

	if r := d.CreateChat(ctx, pairChat("a", "b")); !r.IsOk() {
		t.Fatal(r.Err())
	}

	for _, uid := range []string{"a", "b"} {
		var mu sync.Mutex
		var last []model.Chat
		sub := d.SubscribeChats(uid, func(chats []model.Chat) {
			mu.Lock()
			defer mu.Unlock()
			last = chats
		})
		mu.Lock()
		if len(last) != 1 {
			t.Errorf("membership for %q matched %d chats, want 1", uid, len(last))
		}
		mu.Unlock()
		sub.Cancel()
	}
}

func TestSubscribeChatsFullReplaceAndDecodeDrop(t *testing.T) {
	s := memstore.New()
	d := New(s, zap.NewNop())
	ctx := context.Background()

	// One well-formed record and one with a broken slot shape.
	if r := d.CreateChat(ctx, pairChat("a", "b")); !r.IsOk() {
		t.Fatal(r.Err())
	}
	_ = s.Collection("chats").Doc("broken").Set(ctx, map[string]any{
		"chatId": "broken",
		"user1":  "not a slot",
		"user2":  map[string]any{"userId": "a"},
	})

	var mu sync.Mutex
	var batches [][]model.Chat
	sub := d.SubscribeChats("a", func(chats []model.Chat) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, chats)
	})
	defer sub.Cancel()

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(batches))
	}
	// The undecodable record is dropped, not fatal to the batch.
	if len(batches[0]) != 1 {
		t.Errorf("batch size = %d, want 1 (broken record dropped)", len(batches[0]))
	}
}

func TestGetChatMissingIsFailureWithMessage(t *testing.T) {
	d := New(memstore.New(), zap.NewNop())

	r := d.GetChat(context.Background(), "missing")
	if r.IsOk() || r.IsNotFound() {
		t.Fatalf("GetChat(missing) state = %v, want Failure", r.State())
	}
	if r.Err() == nil || r.Err().Error() == "" {
		t.Error("GetChat(missing) failure carries no message")
	}
	if !strings.Contains(r.Err().Error(), "missing") {
		t.Errorf("failure message %q does not name the chat id", r.Err())
	}
}

func TestUpdateLastMessage(t *testing.T) {
	s := memstore.New()
	d := New(s, zap.NewNop())
	ctx := context.Background()

	if r := d.CreateChat(ctx, pairChat("a", "b")); !r.IsOk() {
		t.Fatal(r.Err())
	}
	docs, _ := s.Collection("chats").WhereAny(docstore.Eq("user1.userId", "a")).Get(ctx)
	chatID := docs[0].ID

	msg := model.Message{Text: "oi", Timestamp: 1000, Sender: model.UserSnapshot{UserID: "a"}}
	if r := d.UpdateLastMessage(ctx, chatID, msg); !r.IsOk() {
		t.Fatalf("UpdateLastMessage() = %v", r.Err())
	}

	got := d.GetChat(ctx, chatID)
	if !got.IsOk() {
		t.Fatal(got.Err())
	}
	if got.Value().LastMessage == nil || got.Value().LastMessage.Text != "oi" {
		t.Errorf("lastMessage = %+v, want text oi", got.Value().LastMessage)
	}
}

func TestUpdateLastMessageMissingChatIsSilentNoop(t *testing.T) {
	d := New(memstore.New(), zap.NewNop())

	r := d.UpdateLastMessage(context.Background(), "missing", model.Message{Text: "x"})
	if r.State() != result.Success {
		t.Errorf("UpdateLastMessage(missing) state = %v, want Success no-op", r.State())
	}
}

func TestAllFriendsKeepsDuplicates(t *testing.T) {
	s := memstore.New()
	d := New(s, zap.NewNop())
	ctx := context.Background()

	// Two chats between the same pair: the duplicate id is preserved.
	if r := d.CreateChat(ctx, pairChat("a", "b")); !r.IsOk() {
		t.Fatal(r.Err())
	}
	if r := d.CreateChat(ctx, pairChat("b", "a")); !r.IsOk() {
		t.Fatal(r.Err())
	}
	if r := d.CreateChat(ctx, pairChat("a", "c")); !r.IsOk() {
		t.Fatal(r.Err())
	}

	friends, err := d.AllFriends(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 3 {
		t.Fatalf("friends = %v, want 3 entries (b twice, c once)", friends)
	}
	counts := map[string]int{}
	for _, f := range friends {
		counts[f]++
	}
	if counts["b"] != 2 || counts["c"] != 1 {
		t.Errorf("friend counts = %v, want b:2 c:1", counts)
	}
}
