package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/reclaim-app/reclaim/internal/model"
)

// CreateComment adds a comment to an item.
func CreateComment(ctx context.Context, db *sql.DB, itemID, userID int64, content string) (*model.Comment, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO comments (item_id, user_id, content) VALUES (?, ?, ?)`,
		itemID, userID, content,
	)
	if err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting comment id: %w", err)
	}

	return GetComment(ctx, db, id)
}

const commentColumns = `
	c.id, c.item_id, c.user_id, c.content, c.created_at, c.deleted_at,
	u.name, COALESCE(u.profile_picture, '')`

const commentFrom = ` FROM comments c JOIN users u ON u.id = c.user_id`

func scanComment(row interface{ Scan(...any) error }) (*model.Comment, error) {
	c := &model.Comment{}
	err := row.Scan(&c.ID, &c.ItemID, &c.UserID, &c.Content, &c.CreatedAt, &c.DeletedAt,
		&c.UserName, &c.UserProfilePicture)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetComment returns a comment by ID.
func GetComment(ctx context.Context, db *sql.DB, id int64) (*model.Comment, error) {
	c, err := scanComment(db.QueryRowContext(ctx,
		`SELECT`+commentColumns+commentFrom+` WHERE c.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting comment: %w", err)
	}
	return c, nil
}

// ListComments returns an item's non-deleted comments, oldest first.
func ListComments(ctx context.Context, db *sql.DB, itemID int64) ([]model.Comment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT`+commentColumns+commentFrom+
			` WHERE c.item_id = ? AND c.deleted_at IS NULL ORDER BY c.created_at, c.id`, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []model.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

// DeleteComment soft-deletes a comment.
func DeleteComment(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE comments SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return nil
}
