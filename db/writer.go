package db

import (
	"context"
	"database/sql"
	"fmt"

	"frontpage/models"

	log "github.com/sirupsen/logrus"
)

// Writer owns the read-write connection. Every mutation runs as one
// transaction on it, so a crash mid-operation leaves no partial state.
type Writer struct {
	db *sql.DB
}

func NewWriter(database string) (*Writer, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return &Writer{db: db}, nil
}

func (writer *Writer) Close() error {
	return writer.db.Close()
}

func (writer *Writer) Ping(ctx context.Context) error {
	return writer.db.PingContext(ctx)
}

// SaveItems upserts a batch of items in a single transaction. Only the
// upstream fields are refreshed for known items; the reaction counters belong
// to this database and are never touched here.
func (writer *Writer) SaveItems(ctx context.Context, items []models.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := writer.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, author, time, title, url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			author = excluded.author,
			time = excluded.time,
			title = excluded.title,
			url = excluded.url`)
	if err != nil {
		return fmt.Errorf("prepare error: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, item.ID, item.By, item.Time, item.Title, item.URL); err != nil {
			return fmt.Errorf("upsert error for item %d: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit error: %w", err)
	}

	return nil
}

// Prune deletes the oldest items beyond keep. Returns the number of rows
// removed.
func (writer *Writer) Prune(ctx context.Context, keep int) (int64, error) {
	return prune(ctx, writer.db, keep)
}

// React applies a like or dislike press for the user and reports what it did.
// Membership rows and item counters move together in one transaction; an
// unknown item yields ErrNotFound with nothing changed.
func (writer *Writer) React(ctx context.Context, userID int64, itemID int64, intent models.Intent) (models.ReactionOutcome, error) {
	tx, err := writer.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM items WHERE id = ?)", itemID).Scan(&exists); err != nil {
		return "", fmt.Errorf("item lookup error: %w", err)
	}
	if !exists {
		return "", ErrNotFound
	}

	current, err := membership(ctx, tx, userID, itemID)
	if err != nil {
		return "", err
	}

	outcome, err := transition(ctx, tx, userID, itemID, current, intent)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit error: %w", err)
	}

	log.WithFields(log.Fields{
		"user":    userID,
		"item":    itemID,
		"outcome": outcome,
	}).Info("Recorded reaction")

	return outcome, nil
}

// transition runs one step of the reaction state machine. A repeated press
// toggles the reaction off, the opposite press switches sides.
func transition(ctx context.Context, tx *sql.Tx, userID int64, itemID int64, current models.Membership, intent models.Intent) (models.ReactionOutcome, error) {
	switch intent {
	case models.IntentLike:
		switch current {
		case models.MembershipLiked:
			if err := retract(ctx, tx, "likes", "like_count", userID, itemID); err != nil {
				return "", err
			}
			return models.OutcomeUnliked, nil
		case models.MembershipDisliked:
			if err := retract(ctx, tx, "dislikes", "dislike_count", userID, itemID); err != nil {
				return "", err
			}
			if err := record(ctx, tx, "likes", "like_count", userID, itemID); err != nil {
				return "", err
			}
			return models.OutcomeSwitchedToLike, nil
		default:
			if err := record(ctx, tx, "likes", "like_count", userID, itemID); err != nil {
				return "", err
			}
			return models.OutcomeLiked, nil
		}
	case models.IntentDislike:
		switch current {
		case models.MembershipDisliked:
			if err := retract(ctx, tx, "dislikes", "dislike_count", userID, itemID); err != nil {
				return "", err
			}
			return models.OutcomeUndisliked, nil
		case models.MembershipLiked:
			if err := retract(ctx, tx, "likes", "like_count", userID, itemID); err != nil {
				return "", err
			}
			if err := record(ctx, tx, "dislikes", "dislike_count", userID, itemID); err != nil {
				return "", err
			}
			return models.OutcomeSwitchedToDislike, nil
		default:
			if err := record(ctx, tx, "dislikes", "dislike_count", userID, itemID); err != nil {
				return "", err
			}
			return models.OutcomeDisliked, nil
		}
	}

	return "", fmt.Errorf("unknown intent %q", intent)
}

// record adds a membership row and bumps its counter up.
func record(ctx context.Context, tx *sql.Tx, table string, counter string, userID int64, itemID int64) error {
	query := fmt.Sprintf("INSERT INTO %s (user_id, item_id) VALUES (?, ?)", table)
	if _, err := tx.ExecContext(ctx, query, userID, itemID); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}

	return bump(ctx, tx, counter, itemID, 1)
}

// retract removes a membership row and bumps its counter down.
func retract(ctx context.Context, tx *sql.Tx, table string, counter string, userID int64, itemID int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ? AND item_id = ?", table)
	if _, err := tx.ExecContext(ctx, query, userID, itemID); err != nil {
		return fmt.Errorf("delete error: %w", err)
	}

	return bump(ctx, tx, counter, itemID, -1)
}

// bump shifts an item counter by delta, clamping at zero.
func bump(ctx context.Context, tx *sql.Tx, counter string, itemID int64, delta int) error {
	query := fmt.Sprintf("UPDATE items SET %s = MAX(%s + ?, 0) WHERE id = ?", counter, counter)
	if _, err := tx.ExecContext(ctx, query, delta, itemID); err != nil {
		return fmt.Errorf("counter update error: %w", err)
	}

	return nil
}

// SaveUser provisions an account on first sight, keyed by email, and
// refreshes the stored profile and admin flag on every later call. Returns
// the stored row.
func (writer *Writer) SaveUser(ctx context.Context, profile models.Profile, admin bool) (models.User, error) {
	var user models.User
	err := scanUser(writer.db.QueryRowContext(ctx, `
		INSERT INTO users (given_name, family_name, nickname, name, picture, email, email_verified, is_admin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET
			given_name = excluded.given_name,
			family_name = excluded.family_name,
			nickname = excluded.nickname,
			name = excluded.name,
			picture = excluded.picture,
			email_verified = excluded.email_verified,
			is_admin = excluded.is_admin
		RETURNING `+userColumns,
		profile.GivenName, profile.FamilyName, profile.Nickname, profile.Name,
		profile.Picture, profile.Email, profile.EmailVerified, admin,
	), &user)
	if err != nil {
		return models.User{}, fmt.Errorf("save user error: %w", err)
	}

	return user, nil
}

// DeleteUser removes an account and reverses every counter its reactions
// contributed, all in one transaction. Unknown ids yield ErrNotFound.
func (writer *Writer) DeleteUser(ctx context.Context, id int64) error {
	tx, err := writer.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE id = ?)", id).Scan(&exists); err != nil {
		return fmt.Errorf("user lookup error: %w", err)
	}
	if !exists {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET like_count = MAX(like_count - 1, 0)
		WHERE id IN (SELECT item_id FROM likes WHERE user_id = ?)`, id); err != nil {
		return fmt.Errorf("like reversal error: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET dislike_count = MAX(dislike_count - 1, 0)
		WHERE id IN (SELECT item_id FROM dislikes WHERE user_id = ?)`, id); err != nil {
		return fmt.Errorf("dislike reversal error: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM likes WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("delete likes error: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM dislikes WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("delete dislikes error: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete user error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit error: %w", err)
	}

	log.WithFields(log.Fields{
		"user": id,
	}).Info("Deleted user")

	return nil
}
