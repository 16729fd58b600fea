package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"frontpage/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
)

// Reader serves queries over its own read-only connection pool.
type Reader struct {
	db *sql.DB
}

func NewReader(database string) (*Reader, error) {
	db, err := readConnection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return &Reader{db: db}, nil
}

func (reader *Reader) Close() error {
	return reader.db.Close()
}

func (reader *Reader) Ping(ctx context.Context) error {
	return reader.db.PingContext(ctx)
}

// Feed returns one page of items plus the total page count. Pages start at 1;
// a page past the end yields an empty slice, not an error.
func (reader *Reader) Feed(ctx context.Context, page int, perPage int, sort models.SortMode) (models.FeedPage, error) {
	feed := models.FeedPage{Items: []models.Item{}, Page: page, Sort: sort}

	var total int
	if err := reader.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&total); err != nil {
		return feed, fmt.Errorf("count error: %w", err)
	}
	feed.TotalPages = (total + perPage - 1) / perPage

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(itemColumns).From("items")
	switch sort {
	case models.SortPopularity:
		sb.OrderBy("like_count - dislike_count DESC", "time DESC", "id DESC")
	default:
		sb.OrderBy("time DESC", "id DESC")
	}
	sb.Limit(perPage).Offset((page - 1) * perPage)

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := reader.db.QueryContext(ctx, query, args...)
	if err != nil {
		return feed, fmt.Errorf("query error: %w", err)
	}

	items, err := collectItems(rows)
	if err != nil {
		return feed, err
	}
	feed.Items = items

	return feed, nil
}

// Newsfeed returns the newest limit items for the public feed.
func (reader *Reader) Newsfeed(ctx context.Context, limit int) ([]models.Item, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(itemColumns).From("items")
	sb.OrderBy("time DESC", "id DESC")
	sb.Limit(limit)

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := reader.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}

	return collectItems(rows)
}

// Membership reports whether the user currently has the item liked or
// disliked.
func (reader *Reader) Membership(ctx context.Context, userID int64, itemID int64) (models.Membership, error) {
	return membership(ctx, reader.db, userID, itemID)
}

// Reactions returns the ids of every item the user has liked and disliked,
// for the viewer block of feed responses.
func (reader *Reader) Reactions(ctx context.Context, userID int64) ([]int64, []int64, error) {
	liked, err := reactionIDs(ctx, reader.db, "likes", userID)
	if err != nil {
		return nil, nil, err
	}

	disliked, err := reactionIDs(ctx, reader.db, "dislikes", userID)
	if err != nil {
		return nil, nil, err
	}

	return liked, disliked, nil
}

func reactionIDs(ctx context.Context, q querier, table string, userID int64) ([]int64, error) {
	query := fmt.Sprintf("SELECT item_id FROM %s WHERE user_id = ? ORDER BY item_id", table)
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// Users lists every account, oldest first.
func (reader *Reader) Users(ctx context.Context) ([]models.User, error) {
	rows, err := reader.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := scanUser(rows, &user); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (reader *Reader) UserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := scanUser(reader.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id), &user)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query error: %w", err)
	}

	return user, nil
}

func (reader *Reader) UserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := scanUser(reader.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email), &user)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("query error: %w", err)
	}

	return user, nil
}
