package server

import (
	"context"

	"dmchat/internal/storage"
)

// Store is the persistence collaborator consumed by handlers and the
// authentication middleware. *storage.Store satisfies it; tests substitute
// fakes to observe collaborator calls.
type Store interface {
	CreateUser(ctx context.Context, username, contact, passwordHash string) (int64, error)
	UserByContact(ctx context.Context, contact string) (storage.User, error)
	UserByID(ctx context.Context, id int64) (storage.User, error)
	SearchUsernames(ctx context.Context, prefix string, excludeID int64) ([]storage.UserSummary, error)
	CreateChat(ctx context.Context, userOne, userTwo int64) (int64, error)
	ChatParticipants(ctx context.Context, chatID int64) (int64, int64, error)
	CreateMessage(ctx context.Context, chatID, authorID int64, text string) (storage.Message, error)
	MessagesByChatID(ctx context.Context, chatID int64) ([]storage.Message, error)
	ChatsByUserID(ctx context.Context, userID int64) ([]storage.ChatSummary, error)
	AddLoginHistory(ctx context.Context, userID int64) error
	Close()
}
