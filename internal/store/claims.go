package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reclaim-app/reclaim/internal/model"
)

// Claim workflow errors, surfaced to the API as validation failures.
var (
	ErrItemNotFound      = errors.New("item not found")
	ErrOwnItem           = errors.New("cannot claim your own item")
	ErrDuplicateClaim    = errors.New("an active claim for this item already exists")
	ErrInvalidTransition = errors.New("invalid claim status transition")
)

// CreateClaim files a claim against an item. Self-claims and repeat claims
// (anything but a previously rejected one) are refused.
func CreateClaim(ctx context.Context, db *sql.DB, itemID, claimantID int64, message, proofURL string) (*model.Claim, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID int64
	err = tx.QueryRowContext(ctx,
		`SELECT user_id FROM items WHERE id = ? AND deleted_at IS NULL`, itemID,
	).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}
	if ownerID == claimantID {
		return nil, ErrOwnItem
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE item_id = ? AND claimant_id = ? AND status != ?`,
		itemID, claimantID, model.ClaimStatusRejected,
	).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("checking existing claims: %w", err)
	}
	if active > 0 {
		return nil, ErrDuplicateClaim
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO claims (item_id, claimant_id, message, proof_url) VALUES (?, ?, ?, ?)`,
		itemID, claimantID, message, proofURL,
	)
	if err != nil {
		return nil, fmt.Errorf("creating claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting claim id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	return GetClaim(ctx, db, id)
}

const claimColumns = `
	c.id, c.item_id, c.claimant_id, c.message, c.proof_url, c.status,
	c.created_at, c.updated_at, u.name, i.title, i.type`

const claimFrom = ` FROM claims c
	JOIN users u ON u.id = c.claimant_id
	JOIN items i ON i.id = c.item_id`

func scanClaim(row interface{ Scan(...any) error }) (*model.Claim, error) {
	c := &model.Claim{}
	var proofURL sql.NullString
	err := row.Scan(&c.ID, &c.ItemID, &c.ClaimantID, &c.Message, &proofURL, &c.Status,
		&c.CreatedAt, &c.UpdatedAt, &c.ClaimantName, &c.ItemTitle, &c.ItemType)
	if err != nil {
		return nil, err
	}
	c.ProofURL = proofURL.String
	return c, nil
}

// GetClaim returns a claim by ID.
func GetClaim(ctx context.Context, db *sql.DB, id int64) (*model.Claim, error) {
	c, err := scanClaim(db.QueryRowContext(ctx,
		`SELECT`+claimColumns+claimFrom+` WHERE c.id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	return c, nil
}

// ListClaimsByItem returns all claims filed against an item, newest first.
func ListClaimsByItem(ctx context.Context, db *sql.DB, itemID int64) ([]model.Claim, error) {
	return listClaims(ctx, db, `c.item_id = ?`, itemID)
}

// ListClaimsByClaimant returns all claims a user has filed, newest first.
func ListClaimsByClaimant(ctx context.Context, db *sql.DB, claimantID int64) ([]model.Claim, error) {
	return listClaims(ctx, db, `c.claimant_id = ?`, claimantID)
}

// CountClaimsByStatus returns how many claims are in the given status.
func CountClaimsByStatus(ctx context.Context, db *sql.DB, status string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE status = ?`, status,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting claims: %w", err)
	}
	return n, nil
}

func listClaims(ctx context.Context, db *sql.DB, cond string, arg any) ([]model.Claim, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT`+claimColumns+claimFrom+` WHERE `+cond+` ORDER BY c.created_at DESC`, arg,
	)
	if err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// AdvanceClaim moves a claim to a new status, enforcing the forward-only
// workflow. Returns ErrInvalidTransition for anything the workflow forbids.
func AdvanceClaim(ctx context.Context, db *sql.DB, id int64, to string) (*model.Claim, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var from string
	err = tx.QueryRowContext(ctx, `SELECT status FROM claims WHERE id = ?`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim status: %w", err)
	}

	if !model.ClaimStatusCanAdvance(from, to) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, to, id,
	); err != nil {
		return nil, fmt.Errorf("updating claim status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing status change: %w", err)
	}

	return GetClaim(ctx, db, id)
}

// ResolveClaim completes an approved claim: the claim becomes completed, the
// item resolved, and the item's other pending claims rejected, all in one
// transaction.
func ResolveClaim(ctx context.Context, db *sql.DB, id int64) (*model.Claim, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var itemID int64
	var from string
	err = tx.QueryRowContext(ctx, `SELECT item_id, status FROM claims WHERE id = ?`, id).Scan(&itemID, &from)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}

	if !model.ClaimStatusCanAdvance(from, model.ClaimStatusCompleted) {
		return nil, ErrInvalidTransition
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.ClaimStatusCompleted, id,
	); err != nil {
		return nil, fmt.Errorf("completing claim: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE item_id = ? AND id != ? AND status = ?`,
		model.ClaimStatusRejected, itemID, id, model.ClaimStatusPending,
	); err != nil {
		return nil, fmt.Errorf("rejecting other claims: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.ItemStatusResolved, itemID,
	); err != nil {
		return nil, fmt.Errorf("resolving item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing resolution: %w", err)
	}

	return GetClaim(ctx, db, id)
}

// AddClaimMessage appends a follow-up message to a claim thread.
func AddClaimMessage(ctx context.Context, db *sql.DB, claimID, senderID int64, body string) (*model.ClaimMessage, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO claim_messages (claim_id, sender_id, body) VALUES (?, ?, ?)`,
		claimID, senderID, body,
	)
	if err != nil {
		return nil, fmt.Errorf("adding claim message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting claim message id: %w", err)
	}

	m := &model.ClaimMessage{}
	err = db.QueryRowContext(ctx,
		`SELECT id, claim_id, sender_id, body, created_at FROM claim_messages WHERE id = ?`, id,
	).Scan(&m.ID, &m.ClaimID, &m.SenderID, &m.Body, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("getting claim message: %w", err)
	}
	return m, nil
}

// ListClaimMessages returns a claim's follow-up messages, oldest first.
func ListClaimMessages(ctx context.Context, db *sql.DB, claimID int64) ([]model.ClaimMessage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, claim_id, sender_id, body, created_at FROM claim_messages
		 WHERE claim_id = ? ORDER BY created_at, id`, claimID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing claim messages: %w", err)
	}
	defer rows.Close()

	var messages []model.ClaimMessage
	for rows.Next() {
		var m model.ClaimMessage
		if err := rows.Scan(&m.ID, &m.ClaimID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning claim message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
