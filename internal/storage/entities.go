package storage

import "time"

// User is the resolved identity of a registered account. PasswordHash is only
// ever compared against, never serialized to clients.
type User struct {
	ID           int64     `json:"user_id"`
	Username     string    `json:"username"`
	Contact      string    `json:"contact"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the public subset of User returned by username search.
type UserSummary struct {
	ID       int64  `json:"user_id"`
	Username string `json:"username"`
}

// ChatSummary describes one direct chat from the perspective of a given user:
// who the other participant is and what was said last.
type ChatSummary struct {
	ChatID          int64     `json:"chat_id"`
	FriendID        int64     `json:"friend_user_id"`
	FriendUsername  string    `json:"friend_username"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
}

type Message struct {
	ID        int64     `json:"message_id"`
	ChatID    int64     `json:"chat_id"`
	AuthorID  int64     `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"sent_time"`
}
