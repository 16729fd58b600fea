// Package db stores mirrored news items, user accounts, and their reactions
// in SQLite. Writes go through a single-connection Writer; reads go through a
// read-only Reader pool.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"frontpage/models"
)

// ErrNotFound is returned when a referenced item or user does not exist.
var ErrNotFound = errors.New("not found")

// querier is the part of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// row is satisfied by both *sql.Row and *sql.Rows.
type row interface {
	Scan(dest ...any) error
}

const itemColumns = "id, author, time, title, url, like_count, dislike_count"

const userColumns = "id, given_name, family_name, nickname, name, picture, email, email_verified, is_admin"

func scanItem(r row, item *models.Item) error {
	return r.Scan(&item.ID, &item.By, &item.Time, &item.Title, &item.URL, &item.LikeCount, &item.DislikeCount)
}

func scanUser(r row, user *models.User) error {
	return r.Scan(&user.ID, &user.GivenName, &user.FamilyName, &user.Nickname, &user.Name, &user.Picture, &user.Email, &user.EmailVerified, &user.Admin)
}

func collectItems(rows *sql.Rows) ([]models.Item, error) {
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// membership reports which reaction table, if any, holds the (user, item)
// pair. The reaction transaction keeps the pair in at most one of them.
func membership(ctx context.Context, q querier, userID int64, itemID int64) (models.Membership, error) {
	var liked bool
	if err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = ? AND item_id = ?)", userID, itemID).Scan(&liked); err != nil {
		return models.MembershipNone, fmt.Errorf("query error: %w", err)
	}
	if liked {
		return models.MembershipLiked, nil
	}

	var disliked bool
	if err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM dislikes WHERE user_id = ? AND item_id = ?)", userID, itemID).Scan(&disliked); err != nil {
		return models.MembershipNone, fmt.Errorf("query error: %w", err)
	}
	if disliked {
		return models.MembershipDisliked, nil
	}

	return models.MembershipNone, nil
}
