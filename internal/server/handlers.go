package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"dmchat/internal/authcache"
	"dmchat/internal/realtime"
	"dmchat/internal/storage"
	"dmchat/internal/token"
)

type handler struct {
	logger     *zap.SugaredLogger
	store      Store
	cache      *authcache.Cache
	tokens     *token.Manager
	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
	validate   *validator.Validate
}

// register handles HTTP requests on "POST /auth/register".
// The body arrives pre-validated through the validated middleware.
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	req := bodyFrom[registerRequest](r)
	if req == nil {
		writeInternal(h.logger, w, errors.New("register route wired without body validation"))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeInternal(h.logger, w, err)
		return
	}

	id, err := h.store.CreateUser(r.Context(), req.Username, req.Contact, string(hash))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUsernameTaken):
			writeMessage(w, http.StatusBadRequest, "Username already taken")
		case errors.Is(err, storage.ErrContactTaken):
			writeMessage(w, http.StatusBadRequest, "Contact already in use")
		default:
			writeInternal(h.logger, w, err)
		}
		return
	}

	accessToken, err := h.tokens.Sign(id)
	if err != nil {
		writeInternal(h.logger, w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusCreated, authResponse{
		AccessToken: accessToken,
		Username:    req.Username,
	})
}

type loginRequest struct {
	Contact  string `json:"contact"`
	Password string `json:"password"`
}

// login handles HTTP requests on "POST /auth/login"
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Contact == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "Invalid login request body")
		return
	}

	user, err := h.store.UserByContact(r.Context(), req.Contact)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotExist) {
			writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeInternal(h.logger, w, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeMessage(w, http.StatusBadRequest, "Wrong password")
		return
	}

	accessToken, err := h.tokens.Sign(user.ID)
	if err != nil {
		writeInternal(h.logger, w, err)
		return
	}

	if err := h.store.AddLoginHistory(r.Context(), user.ID); err != nil {
		writeInternal(h.logger, w, err)
		return
	}

	h.cache.Store(user)

	writeJSON(h.logger, w, http.StatusOK, authResponse{
		AccessToken: accessToken,
		Username:    user.Username,
	})
}

// createChat handles HTTP requests on "POST /chat/create-chat/{friendID}"
func (h *handler) createChat(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	friendID, err := strconv.ParseInt(r.PathValue("friendID"), 10, 64)
	if err != nil || friendID < 1 {
		writeMessage(w, http.StatusBadRequest, "Friend id must be a valid user id greater than zero")
		return
	}

	if friendID == identity.ID {
		writeMessage(w, http.StatusBadRequest, "Can not create chat with yourself")
		return
	}

	chatID, err := h.store.CreateChat(r.Context(), identity.ID, friendID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrChatExists):
			writeMessage(w, http.StatusBadRequest, "Chat already exists")
		case errors.Is(err, storage.ErrChatBadUsers):
			writeMessage(w, http.StatusBadRequest, "Friend does not exist")
		default:
			writeInternal(h.logger, w, err)
		}
		return
	}

	writeJSON(h.logger, w, http.StatusCreated, createChatResponse{ChatID: chatID})
}

// sendMessage handles HTTP requests on "POST /chat/send-message/{chatID}".
// After the message row is durably persisted the dispatcher pushes a realtime
// envelope to the other participant; that outcome never changes the response.
func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	req := bodyFrom[newMessageRequest](r)
	if req == nil {
		writeInternal(h.logger, w, errors.New("send-message route wired without body validation"))
		return
	}

	chatID, err := strconv.ParseInt(r.PathValue("chatID"), 10, 64)
	if err != nil || chatID < 1 {
		writeMessage(w, http.StatusBadRequest, "Chat id must be a valid chat id greater than zero")
		return
	}

	userOne, userTwo, err := h.store.ChatParticipants(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, storage.ErrChatNotExist) {
			writeMessage(w, http.StatusBadRequest, "Chat does not exist")
			return
		}
		writeInternal(h.logger, w, err)
		return
	}

	if identity.ID != userOne && identity.ID != userTwo {
		writeMessage(w, http.StatusForbidden, "Sender is not a chat member")
		return
	}

	msg, err := h.store.CreateMessage(r.Context(), chatID, identity.ID, req.Message)
	if err != nil {
		writeInternal(h.logger, w, err)
		return
	}

	recipientID := userOne
	if recipientID == identity.ID {
		recipientID = userTwo
	}

	h.dispatcher.Dispatch(recipientID, realtime.Envelope{
		ChatID:         msg.ChatID,
		MessageID:      msg.ID,
		MessageText:    msg.Text,
		SentTime:       msg.CreatedAt,
		FriendUsername: identity.Username,
		FriendUserID:   identity.ID,
	})

	writeJSON(h.logger, w, http.StatusCreated, sendMessageResponse{MessageID: msg.ID})
}

// chatsList handles HTTP requests on "GET /chat/retrieve-chats-list"
func (h *handler) chatsList(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	chats, err := h.store.ChatsByUserID(r.Context(), identity.ID)
	if err != nil {
		writeInternal(h.logger, w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, chats)
}

// chatMessages handles HTTP requests on "GET /chat/retrieve-chat-messages/{chatID}"
func (h *handler) chatMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	chatID, err := strconv.ParseInt(r.PathValue("chatID"), 10, 64)
	if err != nil || chatID < 1 {
		writeMessage(w, http.StatusBadRequest, "Chat id must be a valid chat id greater than zero")
		return
	}

	userOne, userTwo, err := h.store.ChatParticipants(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, storage.ErrChatNotExist) {
			writeMessage(w, http.StatusBadRequest, "Chat does not exist")
			return
		}
		writeInternal(h.logger, w, err)
		return
	}

	if identity.ID != userOne && identity.ID != userTwo {
		writeMessage(w, http.StatusForbidden, "Not a chat member")
		return
	}

	messages, err := h.store.MessagesByChatID(r.Context(), chatID)
	if err != nil {
		writeInternal(h.logger, w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, messages)
}

// searchUsernames handles HTTP requests on "GET /chat/search-for-usernames/{username}"
func (h *handler) searchUsernames(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing identity")
		return
	}

	prefix := r.PathValue("username")
	if prefix == "" {
		writeMessage(w, http.StatusBadRequest, "Username prefix must not be empty")
		return
	}

	users, err := h.store.SearchUsernames(r.Context(), prefix, identity.ID)
	if err != nil {
		writeInternal(h.logger, w, err)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, users)
}

// health reports process liveness
func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
