package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"dmchat/internal/storage/zapadapter"
)

var (
	ErrUsernameTaken    = errors.New("username already taken")
	ErrContactTaken     = errors.New("contact already in use")
	ErrUserNotExist     = errors.New("user does not exist")
	ErrChatExists       = errors.New("chat already exists")
	ErrChatBadUsers     = errors.New("bad chat participants")
	ErrChatNotExist     = errors.New("chat does not exist")
	ErrMessageBadChat   = errors.New("bad chat id")
	ErrMessageBadAuthor = errors.New("bad author id")
)

// Store defines fields used in db interaction processes
type Store struct {
	logger *zap.SugaredLogger
	db     *pgxpool.Pool
}

// New sets provided zap.Logger via zapadapter to pgxpool.Pool and returns instance of Store struct
func New(ctx context.Context, logger *zap.SugaredLogger, cfg Config, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, err
	}
	config.ConnConfig.Logger = zapadapter.NewLogger(logger.Desugar())

	for _, opt := range opts {
		opt.apply(config)
	}

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		logger: logger,
		db:     pool,
	}, nil
}

// Close releases all pool connections
func (s *Store) Close() {
	s.db.Close()
}

// CreateUser creates a user with a pre-hashed password and returns its id.
func (s *Store) CreateUser(ctx context.Context, username, contact, passwordHash string) (int64, error) {
	s.logger.Debugf("Creating user (%s)", username)

	var id int64
	sql := "insert into users (username, contact, password_hash, created_at) values ($1, $2, $3, $4) returning id"
	err := s.db.QueryRow(ctx, sql, username, contact, passwordHash, time.Now()).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case "users_username_key":
				return 0, ErrUsernameTaken
			case "users_contact_key":
				return 0, ErrContactTaken
			}
		}
		return 0, err
	}

	s.logger.Debugf("Created user (%s) with id %d", username, id)

	return id, nil
}

// UserByContact returns the user registered with the provided contact
func (s *Store) UserByContact(ctx context.Context, contact string) (User, error) {
	var u User
	sql := "select id, username, contact, password_hash, created_at from users where contact = $1"
	err := s.db.QueryRow(ctx, sql, contact).Scan(&u.ID, &u.Username, &u.Contact, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// UserByID returns the user with the provided id
func (s *Store) UserByID(ctx context.Context, id int64) (User, error) {
	var u User
	sql := "select id, username, contact, password_hash, created_at from users where id = $1"
	err := s.db.QueryRow(ctx, sql, id).Scan(&u.ID, &u.Username, &u.Contact, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotExist
		}
		return User{}, err
	}

	return u, nil
}

// SearchUsernames returns up to 20 users whose username starts with prefix,
// excluding the searching user itself
func (s *Store) SearchUsernames(ctx context.Context, prefix string, excludeID int64) ([]UserSummary, error) {
	sql := `select id, username
			  from users
			 where username ilike $1 || '%'
			   and id <> $2
			 order by username
			 limit 20`

	rows, err := s.db.Query(ctx, sql, prefix, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]UserSummary, 0)
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		summaries = append(summaries, u)
	}

	return summaries, rows.Err()
}

// CreateChat creates the single direct chat between two users and returns its id.
// The pair is stored ordered so the unique constraint is direction-agnostic.
func (s *Store) CreateChat(ctx context.Context, userOne, userTwo int64) (int64, error) {
	s.logger.Debugf("Creating chat between users %d and %d", userOne, userTwo)

	if userOne > userTwo {
		userOne, userTwo = userTwo, userOne
	}

	var id int64
	sql := "insert into chats (user_one_id, user_two_id, created_at) values ($1, $2, $3) returning id"
	err := s.db.QueryRow(ctx, sql, userOne, userTwo, time.Now()).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return 0, ErrChatExists
			case pgerrcode.ForeignKeyViolation:
				return 0, ErrChatBadUsers
			}
		}
		return 0, err
	}

	s.logger.Debugf("Created chat with id %d", id)

	return id, nil
}

// ChatParticipants returns both participant ids of a chat
func (s *Store) ChatParticipants(ctx context.Context, chatID int64) (int64, int64, error) {
	var one, two int64
	sql := "select user_one_id, user_two_id from chats where id = $1"
	err := s.db.QueryRow(ctx, sql, chatID).Scan(&one, &two)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrChatNotExist
		}
		return 0, 0, err
	}

	return one, two, nil
}

// CreateMessage creates new message in database and returns the full persisted row
func (s *Store) CreateMessage(ctx context.Context, chatID, authorID int64, text string) (Message, error) {
	s.logger.Debugf("Creating message from user (id: %d) in chat (id: %d)", authorID, chatID)

	m := Message{
		ChatID:   chatID,
		AuthorID: authorID,
		Text:     text,
	}
	sql := "insert into messages (chat_id, author_id, text, created_at) values ($1, $2, $3, $4) returning id, created_at"
	err := s.db.QueryRow(ctx, sql, chatID, authorID, text, time.Now()).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			switch pgErr.ConstraintName {
			case "messages_chat_id_fkey":
				return Message{}, ErrMessageBadChat
			case "messages_author_id_fkey":
				return Message{}, ErrMessageBadAuthor
			}
		}
		return Message{}, err
	}

	return m, nil
}

// MessagesByChatID returns list of all chat messages with all fields, sorted by message creation time
// (from earliest to latest)
func (s *Store) MessagesByChatID(ctx context.Context, chatID int64) ([]Message, error) {
	s.logger.Debugf("Retrieving messages for chat (id: %d)", chatID)

	// check if chat exists
	var i int8
	sql := "select 1 from chats where id = $1"
	err := s.db.QueryRow(ctx, sql, chatID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChatNotExist
		}
		return nil, err
	}

	sql = `select id, chat_id, author_id, text, created_at
			 from messages
			where chat_id = $1
			order by created_at asc`

	rows, err := s.db.Query(ctx, sql, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.AuthorID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d messages", len(messages))

	return messages, nil
}

// ChatsByUserID returns a summary of every chat the user participates in, sorted
// by the time of the last message in the chat (from latest to oldest). Chats
// without messages fall back to their creation time and an empty last message.
func (s *Store) ChatsByUserID(ctx context.Context, userID int64) ([]ChatSummary, error) {
	s.logger.Debugf("Retrieving chats for user (id: %d)", userID)

	// check if user exists
	var i int8
	sql := "select 1 from users where id = $1"
	err := s.db.QueryRow(ctx, sql, userID).Scan(&i)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotExist
		}
		return nil, err
	}

	sql = `select chats.id,
				  friend.id,
				  friend.username,
				  coalesce(last_message.text, ''),
				  coalesce(last_message.created_at, chats.created_at)
			 from chats
			 join users friend
			   on friend.id = case when chats.user_one_id = $1 then chats.user_two_id else chats.user_one_id end
			 left join lateral (
				  select text, created_at
					from messages
				   where messages.chat_id = chats.id
				   order by created_at desc
				   limit 1
			 ) last_message on true
			where chats.user_one_id = $1
			   or chats.user_two_id = $1
			order by coalesce(last_message.created_at, chats.created_at) desc`

	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := make([]ChatSummary, 0)
	for rows.Next() {
		var c ChatSummary
		if err := rows.Scan(&c.ChatID, &c.FriendID, &c.FriendUsername, &c.LastMessage, &c.LastMessageTime); err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	s.logger.Debugf("Retrieved %d chats", len(chats))

	return chats, nil
}

// AddLoginHistory records a successful login for the user
func (s *Store) AddLoginHistory(ctx context.Context, userID int64) error {
	sql := "insert into login_history (user_id, logged_in_at) values ($1, $2)"
	_, err := s.db.Exec(ctx, sql, userID, time.Now())
	return err
}
