package server

import (
	"context"
	"sync"

	"dmchat/internal/storage"
)

// fakeStore satisfies Store with overridable behavior per method and counts
// every call, so tests can assert a handler was (or was not) reached.
type fakeStore struct {
	mu    sync.Mutex
	calls map[string]int

	createUserFn     func(username, contact, passwordHash string) (int64, error)
	userByContactFn  func(contact string) (storage.User, error)
	userByIDFn       func(id int64) (storage.User, error)
	searchFn         func(prefix string, excludeID int64) ([]storage.UserSummary, error)
	createChatFn     func(userOne, userTwo int64) (int64, error)
	participantsFn   func(chatID int64) (int64, int64, error)
	createMessageFn  func(chatID, authorID int64, text string) (storage.Message, error)
	messagesFn       func(chatID int64) ([]storage.Message, error)
	chatsFn          func(userID int64) ([]storage.ChatSummary, error)
	loginHistoryFn   func(userID int64) error
}

func (f *fakeStore) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeStore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) CreateUser(_ context.Context, username, contact, passwordHash string) (int64, error) {
	f.count("CreateUser")
	if f.createUserFn == nil {
		return 1, nil
	}
	return f.createUserFn(username, contact, passwordHash)
}

func (f *fakeStore) UserByContact(_ context.Context, contact string) (storage.User, error) {
	f.count("UserByContact")
	if f.userByContactFn == nil {
		return storage.User{}, storage.ErrUserNotExist
	}
	return f.userByContactFn(contact)
}

func (f *fakeStore) UserByID(_ context.Context, id int64) (storage.User, error) {
	f.count("UserByID")
	if f.userByIDFn == nil {
		return storage.User{}, storage.ErrUserNotExist
	}
	return f.userByIDFn(id)
}

func (f *fakeStore) SearchUsernames(_ context.Context, prefix string, excludeID int64) ([]storage.UserSummary, error) {
	f.count("SearchUsernames")
	if f.searchFn == nil {
		return []storage.UserSummary{}, nil
	}
	return f.searchFn(prefix, excludeID)
}

func (f *fakeStore) CreateChat(_ context.Context, userOne, userTwo int64) (int64, error) {
	f.count("CreateChat")
	if f.createChatFn == nil {
		return 1, nil
	}
	return f.createChatFn(userOne, userTwo)
}

func (f *fakeStore) ChatParticipants(_ context.Context, chatID int64) (int64, int64, error) {
	f.count("ChatParticipants")
	if f.participantsFn == nil {
		return 0, 0, storage.ErrChatNotExist
	}
	return f.participantsFn(chatID)
}

func (f *fakeStore) CreateMessage(_ context.Context, chatID, authorID int64, text string) (storage.Message, error) {
	f.count("CreateMessage")
	if f.createMessageFn == nil {
		return storage.Message{ID: 1, ChatID: chatID, AuthorID: authorID, Text: text}, nil
	}
	return f.createMessageFn(chatID, authorID, text)
}

func (f *fakeStore) MessagesByChatID(_ context.Context, chatID int64) ([]storage.Message, error) {
	f.count("MessagesByChatID")
	if f.messagesFn == nil {
		return []storage.Message{}, nil
	}
	return f.messagesFn(chatID)
}

func (f *fakeStore) ChatsByUserID(_ context.Context, userID int64) ([]storage.ChatSummary, error) {
	f.count("ChatsByUserID")
	if f.chatsFn == nil {
		return []storage.ChatSummary{}, nil
	}
	return f.chatsFn(userID)
}

func (f *fakeStore) AddLoginHistory(_ context.Context, userID int64) error {
	f.count("AddLoginHistory")
	if f.loginHistoryFn == nil {
		return nil
	}
	return f.loginHistoryFn(userID)
}

func (f *fakeStore) Close() {}
