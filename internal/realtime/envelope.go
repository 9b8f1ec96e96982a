package realtime

import "time"

// Envelope is the realtime payload pushed to a connected recipient after a
// message is persisted. It is a transform of the stored row plus the sender's
// identity, seen from the recipient's side: the "friend" fields describe who
// sent the message.
type Envelope struct {
	ChatID         int64     `json:"chat_id"`
	MessageID      int64     `json:"message_id"`
	MessageText    string    `json:"message_text"`
	SentTime       time.Time `json:"sent_time"`
	FriendUsername string    `json:"friend_username"`
	FriendUserID   int64     `json:"friend_user_id"`
}
