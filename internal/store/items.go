package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/reclaim-app/reclaim/internal/model"
)

// ItemFilter describes the query parameters of GET /api/items. Zero values
// mean "no constraint".
type ItemFilter struct {
	Types      []string
	Categories []string
	Search     string
	Location   string
	Country    string
	State      string
	City       string
	Box        *model.Box
	Limit      int
}

// CreateItemParams carries everything needed to create an item report.
type CreateItemParams struct {
	UserID      int64
	Title       string
	Description string
	Type        string
	Category    string
	Images      []string
	Location    model.Location
	Date        time.Time
}

// itemColumns selects item fields plus the reporter's name and vote tallies.
// The viewer's own vote is parameterized; pass 0 for anonymous requests.
const itemColumns = `
	i.id, i.user_id, i.title, i.description, i.type, i.category,
	i.address, i.city, i.state, i.country, i.lat, i.lng,
	i.date, i.status, i.created_at, i.updated_at, i.deleted_at,
	u.name,
	(SELECT COUNT(*) FROM votes v WHERE v.item_id = i.id AND v.value = 1),
	(SELECT COUNT(*) FROM votes v WHERE v.item_id = i.id AND v.value = -1),
	COALESCE((SELECT v.value FROM votes v WHERE v.item_id = i.id AND v.user_id = ?), 0)`

const itemFrom = ` FROM items i JOIN users u ON u.id = i.user_id`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var description, address, city, state, country sql.NullString
	var lat, lng sql.NullFloat64
	err := row.Scan(
		&item.ID, &item.UserID, &item.Title, &description, &item.Type, &item.Category,
		&address, &city, &state, &country, &lat, &lng,
		&item.Date, &item.Status, &item.CreatedAt, &item.UpdatedAt, &item.DeletedAt,
		&item.UserName, &item.Upvotes, &item.Downvotes, &item.MyVote,
	)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	item.Location = model.Location{
		Address: address.String,
		City:    city.String,
		State:   state.String,
		Country: country.String,
	}
	if lat.Valid && lng.Valid {
		item.Location.Lat = &lat.Float64
		item.Location.Lng = &lng.Float64
	}
	return item, nil
}

// CreateItem creates an item report with its images.
func CreateItem(ctx context.Context, db *sql.DB, p CreateItemParams) (*model.Item, error) {
	if p.Date.IsZero() {
		p.Date = time.Now().UTC()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO items (user_id, title, description, type, category, address, city, state, country, lat, lng, date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.UserID, p.Title, p.Description, p.Type, p.Category,
		p.Location.Address, p.Location.City, p.Location.State, p.Location.Country,
		p.Location.Lat, p.Location.Lng, p.Date,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	for pos, url := range p.Images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_images (item_id, url, position) VALUES (?, ?, ?)`,
			id, url, pos,
		); err != nil {
			return nil, fmt.Errorf("saving item image: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, id, p.UserID)
}

// GetItem returns an item by ID, including soft-deleted ones (for history).
func GetItem(ctx context.Context, db *sql.DB, id, viewerID int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		`SELECT`+itemColumns+itemFrom+` WHERE i.id = ?`, viewerID, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if err := attachImages(ctx, db, []*model.Item{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// filterClauses translates an ItemFilter into WHERE conditions and args.
// The bounding box is only constrained when present; free-text location is a
// fallback used when geocoding failed upstream.
func filterClauses(f ItemFilter) ([]string, []any) {
	conds := []string{"i.deleted_at IS NULL"}
	var args []any

	if len(f.Types) > 0 {
		conds = append(conds, "i.type IN ("+placeholders(len(f.Types))+")")
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if len(f.Categories) > 0 {
		conds = append(conds, "i.category IN ("+placeholders(len(f.Categories))+")")
		for _, c := range f.Categories {
			args = append(args, c)
		}
	}
	if f.Search != "" {
		conds = append(conds, "(i.title LIKE ? OR i.description LIKE ?)")
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern)
	}
	if f.Box != nil {
		conds = append(conds, "i.lat BETWEEN ? AND ? AND i.lng BETWEEN ? AND ?")
		args = append(args, f.Box.South, f.Box.North, f.Box.West, f.Box.East)
	} else if f.Location != "" {
		conds = append(conds, "(i.address LIKE ? OR i.city LIKE ?)")
		pattern := "%" + f.Location + "%"
		args = append(args, pattern, pattern)
	}
	if f.Country != "" {
		conds = append(conds, "i.country = ?")
		args = append(args, f.Country)
	}
	if f.State != "" {
		conds = append(conds, "i.state = ?")
		args = append(args, f.State)
	}
	if f.City != "" {
		conds = append(conds, "i.city = ?")
		args = append(args, f.City)
	}

	return conds, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ListItems returns non-deleted items matching the filter, newest first.
func ListItems(ctx context.Context, db *sql.DB, f ItemFilter, viewerID int64) ([]model.Item, error) {
	conds, args := filterClauses(f)

	query := `SELECT` + itemColumns + itemFrom +
		` WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY i.created_at DESC`
	allArgs := append([]any{viewerID}, args...)
	if f.Limit > 0 {
		query += ` LIMIT ?`
		allArgs = append(allArgs, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	return collectItems(ctx, db, rows)
}

// ListItemsByUser returns all non-deleted items reported by a user.
func ListItemsByUser(ctx context.Context, db *sql.DB, userID, viewerID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT`+itemColumns+itemFrom+
			` WHERE i.deleted_at IS NULL AND i.user_id = ? ORDER BY i.created_at DESC`,
		viewerID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user items: %w", err)
	}
	defer rows.Close()

	return collectItems(ctx, db, rows)
}

// ListAllItems returns every item including soft-deleted ones, for moderation.
func ListAllItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT`+itemColumns+itemFrom+` ORDER BY i.created_at DESC`, int64(0),
	)
	if err != nil {
		return nil, fmt.Errorf("listing all items: %w", err)
	}
	defer rows.Close()

	return collectItems(ctx, db, rows)
}

func collectItems(ctx context.Context, db *sql.DB, rows *sql.Rows) ([]model.Item, error) {
	items := []model.Item{}
	var refs []*model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range items {
		refs = append(refs, &items[i])
	}
	if err := attachImages(ctx, db, refs); err != nil {
		return nil, err
	}
	return items, nil
}

// attachImages loads image URLs for the given items in one query.
func attachImages(ctx context.Context, db *sql.DB, items []*model.Item) error {
	if len(items) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Item, len(items))
	ids := make([]any, 0, len(items))
	for _, item := range items {
		item.Images = []string{}
		byID[item.ID] = item
		ids = append(ids, item.ID)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT item_id, url FROM item_images WHERE item_id IN (`+placeholders(len(ids))+`) ORDER BY item_id, position`,
		ids...,
	)
	if err != nil {
		return fmt.Errorf("loading item images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID int64
		var url string
		if err := rows.Scan(&itemID, &url); err != nil {
			return fmt.Errorf("scanning item image: %w", err)
		}
		if item, ok := byID[itemID]; ok {
			item.Images = append(item.Images, url)
		}
	}
	return rows.Err()
}

// UpdateItem updates an item's editable fields.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, title, description, category string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET title = ?, description = ?, category = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		title, description, category, id,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return nil
}

// SetItemLocation overwrites an item's stored location, used by the geocoding
// enrichment after creation.
func SetItemLocation(ctx context.Context, db *sql.DB, id int64, loc model.Location) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET address = ?, city = ?, state = ?, country = ?, lat = ?, lng = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		loc.Address, loc.City, loc.State, loc.Country, loc.Lat, loc.Lng, id,
	)
	if err != nil {
		return fmt.Errorf("setting item location: %w", err)
	}
	return nil
}

// ResolveItem marks an item as resolved.
func ResolveItem(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		model.ItemStatusResolved, id,
	)
	if err != nil {
		return fmt.Errorf("resolving item: %w", err)
	}
	return nil
}

// DeleteItem soft-deletes an item.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}

// ToggleVote records a user's vote on an item. Voting the same way twice
// removes the vote; voting the other way replaces it. A user can never hold
// both an up- and a downvote. Returns the confirmed tallies and the user's
// resulting vote.
func ToggleVote(ctx context.Context, db *sql.DB, itemID, userID int64, value int) (up, down, myVote int, err error) {
	if value != 1 && value != -1 {
		return 0, 0, 0, fmt.Errorf("vote value must be 1 or -1")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM votes WHERE item_id = ? AND user_id = ?`, itemID, userID,
	).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO votes (item_id, user_id, value) VALUES (?, ?, ?)`,
			itemID, userID, value,
		)
		myVote = value
	case err != nil:
		return 0, 0, 0, fmt.Errorf("checking existing vote: %w", err)
	case existing == value:
		_, err = tx.ExecContext(ctx,
			`DELETE FROM votes WHERE item_id = ? AND user_id = ?`, itemID, userID,
		)
		myVote = 0
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE votes SET value = ? WHERE item_id = ? AND user_id = ?`,
			value, itemID, userID,
		)
		myVote = value
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("writing vote: %w", err)
	}

	err = tx.QueryRowContext(ctx,
		`SELECT
		   COUNT(CASE WHEN value = 1 THEN 1 END),
		   COUNT(CASE WHEN value = -1 THEN 1 END)
		 FROM votes WHERE item_id = ?`, itemID,
	).Scan(&up, &down)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("counting votes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, fmt.Errorf("committing vote: %w", err)
	}
	return up, down, myVote, nil
}

// FindMatches returns open items of the opposite type and same category,
// ranked by text similarity to the given item.
func FindMatches(ctx context.Context, db *sql.DB, itemID, viewerID int64, limit int) ([]model.Item, error) {
	item, err := GetItem(ctx, db, itemID, viewerID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}

	oppositeType := model.ItemTypeFound
	if item.Type == model.ItemTypeFound {
		oppositeType = model.ItemTypeLost
	}

	rows, err := db.QueryContext(ctx,
		`SELECT`+itemColumns+itemFrom+
			` WHERE i.deleted_at IS NULL AND i.status = ? AND i.type = ? AND i.category = ? AND i.user_id != ?
			 ORDER BY i.created_at DESC LIMIT 200`,
		viewerID, model.ItemStatusOpen, oppositeType, item.Category, item.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("finding matches: %w", err)
	}
	defer rows.Close()

	candidates, err := collectItems(ctx, db, rows)
	if err != nil {
		return nil, err
	}

	target := item.Title + " " + item.Description
	type scored struct {
		item  model.Item
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		s := matchScore(target, c.Title+" "+c.Description)
		if c.Location.City != "" && strings.EqualFold(c.Location.City, item.Location.City) {
			s += 0.25
		}
		if s > 0 {
			ranked = append(ranked, scored{c, s})
		}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	if limit <= 0 || limit > len(ranked) {
		limit = len(ranked)
	}
	matches := make([]model.Item, 0, limit)
	for _, r := range ranked[:limit] {
		matches = append(matches, r.item)
	}
	return matches, nil
}

// matchScore measures word overlap between two texts, normalised by the size
// of the smaller token set. Case-insensitive; one-letter tokens are ignored.
func matchScore(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for w := range ta {
		if tb[w] {
			shared++
		}
	}

	min := len(ta)
	if len(tb) < min {
		min = len(tb)
	}
	return float64(shared) / float64(min)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(w) > 1 {
			set[w] = true
		}
	}
	return set
}
