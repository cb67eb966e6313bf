// Package model defines the document shapes shared between the sync
// packages. Field tags follow the backend document field names.
package model

// User is a user profile document. The profile picture field name
// differs from the chat-slot copy; both are kept as the backend wrote
// them.
type User struct {
	UserID     string `mapstructure:"userId"`
	Email      string `mapstructure:"email"`
	Username   string `mapstructure:"username"`
	ProfileURL string `mapstructure:"profilePictureUrl"`
	Bio        string `mapstructure:"bio"`
	StoryURL   string `mapstructure:"storyUrl"`
}

// UserSnapshot is a denormalized copy of a user's public fields embedded
// in a chat record slot. Owned by the chat record, refreshed
// opportunistically, not guaranteed current.
type UserSnapshot struct {
	UserID     string `mapstructure:"userId"`
	Username   string `mapstructure:"username"`
	Email      string `mapstructure:"email"`
	Bio        string `mapstructure:"bio"`
	ProfileURL string `mapstructure:"profileUrl"`
	IsTyping   bool   `mapstructure:"isTyping"`
	Status     string `mapstructure:"status"`
}

// Chat is a directory record for one conversation. Exactly one canonical
// record exists per unordered pair of user ids; membership queries must
// match regardless of which slot a user occupies.
type Chat struct {
	ChatID      string        `mapstructure:"chatId"`
	User1       *UserSnapshot `mapstructure:"user1"`
	User2       *UserSnapshot `mapstructure:"user2"`
	LastMessage *Message      `mapstructure:"lastMessage"`
}

// Message is immutable once created. Timestamp is unix milliseconds,
// assigned at send time by the originating client.
type Message struct {
	Text      string       `mapstructure:"text"`
	Timestamp int64        `mapstructure:"timestamp"`
	Sender    UserSnapshot `mapstructure:"sender"`
	MediaURLs []string     `mapstructure:"mediaUrl"`
}

// MessageLog is the per-chat message document, keyed by the chat id.
// The sequence is append-only from any single client's perspective;
// ordering is insertion order as observed by the backend.
type MessageLog struct {
	ChatID   string       `mapstructure:"chatId"`
	Sender   UserSnapshot `mapstructure:"sender"`
	Messages []Message    `mapstructure:"messages"`
}

// Story is one entry of the story strip. An empty URL denotes "no active
// story" and renders as the affordance to create one.
type Story struct {
	Name string `mapstructure:"username"`
	URL  string `mapstructure:"storyUrl"`
}

// Presence is the derived, non-persisted view of the partner's slot in a
// chat, reconstructed per snapshot.
type Presence struct {
	IsTyping bool
	Status   string
}

// Snapshot returns the embeddable copy of a user's public fields.
func (u User) Snapshot() UserSnapshot {
	return UserSnapshot{
		UserID:     u.UserID,
		Username:   u.Username,
		Email:      u.Email,
		Bio:        u.Bio,
		ProfileURL: u.ProfileURL,
	}
}
