package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reclaim-app/reclaim/internal/model"
)

// ErrChatWithSelf is returned when a user tries to open a chat about their
// own item.
var ErrChatWithSelf = errors.New("cannot start a chat about your own item")

// GetOrCreateChat returns the chat between the requester and the item's
// reporter, creating it if none exists.
func GetOrCreateChat(ctx context.Context, db *sql.DB, itemID, requesterID int64) (*model.Chat, error) {
	var ownerID int64
	err := db.QueryRowContext(ctx,
		`SELECT user_id FROM items WHERE id = ? AND deleted_at IS NULL`, itemID,
	).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item not found")
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}
	if ownerID == requesterID {
		return nil, ErrChatWithSelf
	}

	var chatID int64
	err = db.QueryRowContext(ctx,
		`SELECT c.id FROM chats c
		 JOIN chat_participants a ON a.chat_id = c.id AND a.user_id = ?
		 JOIN chat_participants b ON b.chat_id = c.id AND b.user_id = ?
		 WHERE c.item_id = ?`,
		requesterID, ownerID, itemID,
	).Scan(&chatID)
	if err == nil {
		return GetChat(ctx, db, chatID, requesterID)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("looking up chat: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `INSERT INTO chats (item_id) VALUES (?)`, itemID)
	if err != nil {
		return nil, fmt.Errorf("creating chat: %w", err)
	}
	chatID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting chat id: %w", err)
	}

	for _, uid := range []int64{requesterID, ownerID} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_participants (chat_id, user_id) VALUES (?, ?)`, chatID, uid,
		); err != nil {
			return nil, fmt.Errorf("adding chat participant: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing chat: %w", err)
	}

	return GetChat(ctx, db, chatID, requesterID)
}

// GetChat returns a chat with participants and full message history. The
// viewer argument drives the unread count; pass 0 to skip it.
func GetChat(ctx context.Context, db *sql.DB, chatID, viewerID int64) (*model.Chat, error) {
	chat := &model.Chat{}
	err := db.QueryRowContext(ctx,
		`SELECT id, item_id, created_at FROM chats WHERE id = ?`, chatID,
	).Scan(&chat.ID, &chat.ItemID, &chat.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting chat: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, u.role, COALESCE(u.profile_picture, ''), u.created_at
		 FROM chat_participants p JOIN users u ON u.id = p.user_id
		 WHERE p.chat_id = ? ORDER BY u.id`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading chat participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.ProfilePicture, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat participant: %w", err)
		}
		chat.Participants = append(chat.Participants, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chat.Messages, err = ListMessages(ctx, db, chatID)
	if err != nil {
		return nil, err
	}

	if viewerID != 0 {
		chat.Unread, err = unreadInChat(ctx, db, chatID, viewerID)
		if err != nil {
			return nil, err
		}
	}

	return chat, nil
}

// ListChats returns all chats a user participates in, most recent first.
func ListChats(ctx context.Context, db *sql.DB, userID int64) ([]model.Chat, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id FROM chats c
		 JOIN chat_participants p ON p.chat_id = c.id AND p.user_id = ?
		 ORDER BY COALESCE((SELECT MAX(m.created_at) FROM chat_messages m WHERE m.chat_id = c.id), c.created_at) DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chat id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	chats := make([]model.Chat, 0, len(ids))
	for _, id := range ids {
		chat, err := GetChat(ctx, db, id, userID)
		if err != nil {
			return nil, err
		}
		if chat != nil {
			chats = append(chats, *chat)
		}
	}
	return chats, nil
}

// IsParticipant reports whether a user belongs to a chat.
func IsParticipant(ctx context.Context, db *sql.DB, chatID, userID int64) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_participants WHERE chat_id = ? AND user_id = ?`,
		chatID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking chat participant: %w", err)
	}
	return count > 0, nil
}

// AppendMessage stores a chat message. ClientID is an idempotency key: a
// repeat send with the same (chat, client id) pair returns the already-stored
// message and created=false instead of inserting a duplicate.
func AppendMessage(ctx context.Context, db *sql.DB, chatID, senderID int64, content, clientID string) (msg *model.Message, created bool, err error) {
	result, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_messages (chat_id, sender_id, content, client_id) VALUES (?, ?, ?, ?)`,
		chatID, senderID, content, clientID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("appending message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("checking message insert: %w", err)
	}

	if affected == 0 {
		// Duplicate client id; hand back the original.
		msg, err = getMessageByClientID(ctx, db, chatID, clientID)
		if err != nil {
			return nil, false, err
		}
		return msg, false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("getting message id: %w", err)
	}

	msg, err = getMessage(ctx, db, id)
	return msg, true, err
}

const messageColumns = `id, chat_id, sender_id, content, COALESCE(client_id, ''), created_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	m := &model.Message{}
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.ClientID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func getMessage(ctx context.Context, db *sql.DB, id int64) (*model.Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return m, nil
}

func getMessageByClientID(ctx context.Context, db *sql.DB, chatID int64, clientID string) (*model.Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE chat_id = ? AND client_id = ?`,
		chatID, clientID,
	))
	if err != nil {
		return nil, fmt.Errorf("getting message by client id: %w", err)
	}
	return m, nil
}

// ListMessages returns a chat's messages, oldest first.
func ListMessages(ctx context.Context, db *sql.DB, chatID int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM chat_messages WHERE chat_id = ? ORDER BY created_at, id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// MarkRead advances the viewer's read marker to now.
func MarkRead(ctx context.Context, db *sql.DB, chatID, userID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE chat_participants SET last_read_at = CURRENT_TIMESTAMP
		 WHERE chat_id = ? AND user_id = ?`, chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("marking chat read: %w", err)
	}
	return nil
}

// UnreadCount returns the number of messages across all of a user's chats
// sent by others after the user's read marker.
func UnreadCount(ctx context.Context, db *sql.DB, userID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages m
		 JOIN chat_participants p ON p.chat_id = m.chat_id AND p.user_id = ?
		 WHERE m.sender_id != ? AND m.created_at > p.last_read_at`,
		userID, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return n, nil
}

func unreadInChat(ctx context.Context, db *sql.DB, chatID, userID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages m
		 JOIN chat_participants p ON p.chat_id = m.chat_id AND p.user_id = ?
		 WHERE m.chat_id = ? AND m.sender_id != ? AND m.created_at > p.last_read_at`,
		userID, chatID, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting unread in chat: %w", err)
	}
	return n, nil
}
