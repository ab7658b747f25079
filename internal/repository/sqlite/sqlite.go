// Package sqlite provides a SQLite-backed implementation of repository.AuctionDB.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/utils"
)

var _ repository.AuctionDB = (*Store)(nil)

const auctionColumns = `id, name, description, seller_id, seller_name, min_bid, current_bid,
	current_bidder_id, current_bidder_name, image_url, status, end_time, created_at, updated_at, version`

const bidColumns = `id, auction_id, bidder_id, bidder_name, amount, created_at`

const messageColumns = `id, sender_id, recipient_id, content, auction_id, is_read, type, created_at`

const userColumns = `id, name, email, roles, active, created_at, updated_at`

// Store implements repository.AuctionDB on a single SQLite database.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs migrations.
func New(ctx context.Context, dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps writes and transactions ordered.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return NewWithDB(db), nil
}

// NewWithDB wraps an already migrated database.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateAuction inserts a new auction with version 1.
func (s *Store) CreateAuction(ctx context.Context, a model.Auction) (model.Auction, error) {
	if a.AuctionID == "" {
		a.AuctionID = utils.GenerateID()
	}
	a.Version = 1
	a.BidIDs = []string{}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auctions (`+auctionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AuctionID, a.Name, a.Description, a.SellerID, a.SellerName, a.MinBid, a.CurrentBid,
		a.CurrentBidderID, a.CurrentBidderName, a.ImageURL, string(a.Status),
		toUnix(a.EndTime), toUnix(a.CreatedAt), toUnix(a.UpdatedAt), a.Version,
	)
	if err != nil {
		return model.Auction{}, fmt.Errorf("failed to insert auction: %w", err)
	}
	return a, nil
}

// GetAuction retrieves an auction with its bid IDs.
func (s *Store) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	return getAuction(ctx, s.db, auctionID)
}

// FindAuctionsBySeller returns the auctions listed by sellerID.
func (s *Store) FindAuctionsBySeller(ctx context.Context, sellerID string) ([]model.Auction, error) {
	return s.queryAuctions(ctx, `WHERE seller_id = ?`, sellerID)
}

// FindAuctionsByStatus returns the auctions in status.
func (s *Store) FindAuctionsByStatus(ctx context.Context, status model.AuctionStatus) ([]model.Auction, error) {
	return s.queryAuctions(ctx, `WHERE status = ?`, string(status))
}

// FindAuctionsEndingBefore returns auctions whose deadline is strictly before t.
func (s *Store) FindAuctionsEndingBefore(ctx context.Context, t time.Time) ([]model.Auction, error) {
	return s.queryAuctions(ctx, `WHERE end_time < ?`, toUnix(t))
}

// FindAuctionsEndingAfter returns auctions in status whose deadline is strictly after t.
func (s *Store) FindAuctionsEndingAfter(ctx context.Context, t time.Time, status model.AuctionStatus) ([]model.Auction, error) {
	return s.queryAuctions(ctx, `WHERE end_time > ? AND status = ?`, toUnix(t), string(status))
}

// CommitBid inserts bid and updates its auction in one transaction, guarded by the version.
func (s *Store) CommitBid(ctx context.Context, bid model.Bid, expectedVersion int64) (model.Auction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Auction{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE auctions
		SET current_bid = ?, current_bidder_id = ?, current_bidder_name = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ? AND status = ?`,
		bid.Amount, bid.BidderID, bid.BidderName, toUnix(bid.CreatedAt),
		bid.AuctionID, expectedVersion, string(model.StatusActive),
	)
	if err != nil {
		return model.Auction{}, fmt.Errorf("failed to update auction: %w", err)
	}
	if err := expectOneRow(ctx, tx, res, bid.AuctionID); err != nil {
		return model.Auction{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO bids (`+bidColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		bid.BidID, bid.AuctionID, bid.BidderID, bid.BidderName, bid.Amount, toUnix(bid.CreatedAt),
	)
	if err != nil {
		return model.Auction{}, fmt.Errorf("failed to insert bid: %w", err)
	}

	auction, err := getAuction(ctx, tx, bid.AuctionID)
	if err != nil {
		return model.Auction{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Auction{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return auction, nil
}

// UpdateAuctionStatus moves an ACTIVE auction to a terminal status and inserts messages in the
// same transaction.
func (s *Store) UpdateAuctionStatus(ctx context.Context, auctionID string, expectedVersion int64, status model.AuctionStatus, at time.Time, messages []model.Message) (model.Auction, error) {
	if !status.Terminal() {
		return model.Auction{}, fmt.Errorf("update auction %s to %s: %w", auctionID, status, biddingerrors.ErrInvalidAuction)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Auction{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE auctions SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ? AND status = ?`,
		string(status), toUnix(at), auctionID, expectedVersion, string(model.StatusActive),
	)
	if err != nil {
		return model.Auction{}, fmt.Errorf("failed to update auction status: %w", err)
	}
	if err := expectOneRow(ctx, tx, res, auctionID); err != nil {
		return model.Auction{}, err
	}

	for _, msg := range messages {
		if _, err := insertMessage(ctx, tx, msg); err != nil {
			return model.Auction{}, err
		}
	}

	auction, err := getAuction(ctx, tx, auctionID)
	if err != nil {
		return model.Auction{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Auction{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return auction, nil
}

// GetBidsByAuction returns an auction's bids in acceptance order.
func (s *Store) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	return s.queryBids(ctx, `WHERE auction_id = ?`, auctionID)
}

// GetBidsByBidder returns a user's bids in acceptance order.
func (s *Store) GetBidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error) {
	return s.queryBids(ctx, `WHERE bidder_id = ?`, bidderID)
}

// SaveMessage inserts or replaces a message.
func (s *Store) SaveMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	return insertMessage(ctx, s.db, msg)
}

// GetMessage retrieves a single message.
func (s *Store) GetMessage(ctx context.Context, messageID string) (model.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, messageID)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, fmt.Errorf("get message %s: %w", messageID, biddingerrors.ErrMessageNotFound)
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// GetMessagesByRecipient returns the recipient's messages, newest first.
func (s *Store) GetMessagesByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE recipient_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	msgs := []model.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return msgs, nil
}

// MarkMessageRead sets the read flag of a message.
func (s *Store) MarkMessageRead(ctx context.Context, messageID string) (model.Message, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET is_read = 1 WHERE id = ?`, messageID)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to mark message read: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return model.Message{}, fmt.Errorf("mark message %s read: %w", messageID, biddingerrors.ErrMessageNotFound)
	}
	return s.GetMessage(ctx, messageID)
}

// SaveUser inserts a user. An existing user only takes the new name, email, roles and update
// time; its active flag and creation time are kept.
func (s *Store) SaveUser(ctx context.Context, user model.User) (model.User, error) {
	if user.UserID == "" {
		user.UserID = utils.GenerateID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, email = excluded.email, roles = excluded.roles,
			updated_at = excluded.updated_at`,
		user.UserID, user.Name, user.Email, strings.Join(user.Roles, ","), user.Active,
		toUnix(user.CreatedAt), toUnix(user.UpdatedAt),
	)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to save user: %w", err)
	}
	return s.GetUser(ctx, user.UserID)
}

// ToggleUserActive flips the active flag of a user in a single statement.
func (s *Store) ToggleUserActive(ctx context.Context, userID string, at time.Time) (model.User, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET active = NOT active, updated_at = ? WHERE id = ?`, toUnix(at), userID)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to toggle user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.User{}, fmt.Errorf("failed to toggle user: %w", err)
	}
	if n == 0 {
		return model.User{}, fmt.Errorf("toggle user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return s.GetUser(ctx, userID)
}

// GetUser retrieves a single user.
func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryAuctions(ctx context.Context, where string, args ...any) ([]model.Auction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+auctionColumns+` FROM auctions `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auctions: %w", err)
	}

	auctions := []model.Auction{}
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate auctions: %w", err)
	}

	// Bid IDs are loaded after the cursor is closed: the pool holds a single connection.
	for i := range auctions {
		if auctions[i].BidIDs, err = bidIDs(ctx, s.db, auctions[i].AuctionID); err != nil {
			return nil, err
		}
	}
	return auctions, nil
}

func (s *Store) queryBids(ctx context.Context, where string, args ...any) ([]model.Bid, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+bidColumns+` FROM bids `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	bids := []model.Bid{}
	for rows.Next() {
		var (
			b         model.Bid
			createdAt int64
		)
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.BidderID, &b.BidderName, &b.Amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		b.CreatedAt = fromUnix(createdAt)
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bids: %w", err)
	}
	return bids, nil
}

func getAuction(ctx context.Context, q queryer, auctionID string) (model.Auction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = ?`, auctionID)
	a, err := scanAuction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("failed to get auction: %w", err)
	}

	if a.BidIDs, err = bidIDs(ctx, q, auctionID); err != nil {
		return model.Auction{}, err
	}
	return a, nil
}

func bidIDs(ctx context.Context, q queryer, auctionID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM bids WHERE auction_id = ? ORDER BY seq`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bid id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bid ids: %w", err)
	}
	return ids, nil
}

// expectOneRow turns a guarded update that matched nothing into ErrAuctionNotFound or ErrConflict.
func expectOneRow(ctx context.Context, q queryer, res sql.Result, auctionID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM auctions WHERE id = ?`, auctionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check auction: %w", err)
	}
	return fmt.Errorf("update auction %s: %w", auctionID, biddingerrors.ErrConflict)
}

func insertMessage(ctx context.Context, q queryer, msg model.Message) (model.Message, error) {
	if msg.MessageID == "" {
		msg.MessageID = utils.GenerateID()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content = excluded.content, is_read = excluded.is_read`,
		msg.MessageID, msg.SenderID, msg.RecipientID, msg.Content, msg.AuctionID, msg.Read,
		string(msg.Type), toUnix(msg.CreatedAt),
	)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

func scanAuction(row scanner) (model.Auction, error) {
	var (
		a                             model.Auction
		status                        string
		endTime, createdAt, updatedAt int64
	)
	err := row.Scan(&a.AuctionID, &a.Name, &a.Description, &a.SellerID, &a.SellerName, &a.MinBid, &a.CurrentBid,
		&a.CurrentBidderID, &a.CurrentBidderName, &a.ImageURL, &status, &endTime, &createdAt, &updatedAt, &a.Version)
	if err != nil {
		return model.Auction{}, err
	}
	a.Status = model.AuctionStatus(status)
	a.EndTime = fromUnix(endTime)
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updatedAt)
	return a, nil
}

func scanMessage(row scanner) (model.Message, error) {
	var (
		msg       model.Message
		msgType   string
		createdAt int64
	)
	err := row.Scan(&msg.MessageID, &msg.SenderID, &msg.RecipientID, &msg.Content, &msg.AuctionID, &msg.Read, &msgType, &createdAt)
	if err != nil {
		return model.Message{}, err
	}
	msg.Type = model.MessageType(msgType)
	msg.CreatedAt = fromUnix(createdAt)
	return msg, nil
}

func scanUser(row scanner) (model.User, error) {
	var (
		user                 model.User
		roles                string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&user.UserID, &user.Name, &user.Email, &roles, &user.Active, &createdAt, &updatedAt); err != nil {
		return model.User{}, err
	}
	if roles != "" {
		user.Roles = strings.Split(roles, ",")
	}
	user.CreatedAt = fromUnix(createdAt)
	user.UpdatedAt = fromUnix(updatedAt)
	return user, nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
