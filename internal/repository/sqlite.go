package repository

// sqlite.go — durable AuctionStore backed by SQLite (pure Go, no CGo).
//
// One row per auction, one row per bid; bid rowid order matches insertion
// order, which is the chronological order the domain relies on. Watchers live
// in their own table keyed (auction_id, user_id).

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-live/internal/auctionerrors"
	model "auction-live/internal/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS auctions (
    auction_id     TEXT PRIMARY KEY,
    seller_id      TEXT NOT NULL,
    title          TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    images         TEXT NOT NULL DEFAULT '[]',
    starting_price REAL NOT NULL,
    current_bid    REAL NOT NULL,
    bid_increment  REAL NOT NULL,
    reserve_price  REAL NOT NULL DEFAULT 0,
    buy_now_price  REAL NOT NULL DEFAULT 0,
    start_time     DATETIME NOT NULL,
    end_time       DATETIME NOT NULL,
    status         TEXT NOT NULL,
    quantity       INTEGER NOT NULL DEFAULT 1,
    reserved       INTEGER NOT NULL DEFAULT 0,
    sold           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bids (
    bid_id      TEXT PRIMARY KEY,
    auction_id  TEXT NOT NULL REFERENCES auctions(auction_id),
    user_id     TEXT NOT NULL,
    username    TEXT NOT NULL DEFAULT '',
    amount      REAL NOT NULL,
    is_auto_bid INTEGER NOT NULL DEFAULT 0,
    max_bid     REAL NOT NULL DEFAULT 0,
    status      TEXT NOT NULL,
    created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS watchers (
    auction_id TEXT NOT NULL,
    user_id    TEXT NOT NULL,
    PRIMARY KEY (auction_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_bids_auction   ON bids(auction_id);
CREATE INDEX IF NOT EXISTS idx_auction_status ON auctions(status);
`

// SQLiteStore implements AuctionStore on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given DSN and applies
// the schema. Use ":memory:" for an ephemeral database in tests.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", dsn, err)
	}
	// Serialized access keeps the store simple; bid volume is tiny compared
	// to SQLite's write throughput.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateAuction inserts a new auction row.
func (s *SQLiteStore) CreateAuction(a model.Auction) error {
	if a.CurrentBid < a.StartingPrice {
		a.CurrentBid = a.StartingPrice
	}
	images, err := json.Marshal(a.Images)
	if err != nil {
		return fmt.Errorf("sqlite: marshal images for auction %s: %w", a.AuctionID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO auctions (auction_id, seller_id, title, description, images,
			starting_price, current_bid, bid_increment, reserve_price, buy_now_price,
			start_time, end_time, status, quantity, reserved, sold)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AuctionID, a.SellerID, a.Title, a.Description, string(images),
		a.StartingPrice, a.CurrentBid, a.BidIncrement, a.ReservePrice, a.BuyNowPrice,
		a.StartTime.UTC(), a.EndTime.UTC(), string(a.Status),
		a.Inventory.Quantity, a.Inventory.Reserved, a.Inventory.Sold)
	if err != nil {
		return fmt.Errorf("sqlite: create auction %s: %w", a.AuctionID, err)
	}
	return nil
}

// GetAuction loads one auction with its bid history and watcher set.
func (s *SQLiteStore) GetAuction(auctionID string) (model.Auction, error) {
	a, err := s.scanAuction(s.db.QueryRow(`
		SELECT auction_id, seller_id, title, description, images,
			starting_price, current_bid, bid_increment, reserve_price, buy_now_price,
			start_time, end_time, status, quantity, reserved, sold
		FROM auctions WHERE auction_id = ?`, auctionID))
	if err != nil {
		return model.Auction{}, err
	}

	if a.Bids, err = s.loadBids(auctionID); err != nil {
		return model.Auction{}, err
	}
	if a.Watchers, err = s.loadWatchers(auctionID); err != nil {
		return model.Auction{}, err
	}
	return a, nil
}

// ListByStatus returns all auctions in the given status without their bid
// histories; an empty status matches everything. The lifecycle driver only
// needs the timing columns, so the histories stay on disk.
func (s *SQLiteStore) ListByStatus(status model.AuctionStatus) ([]model.Auction, error) {
	query := `
		SELECT auction_id, seller_id, title, description, images,
			starting_price, current_bid, bid_increment, reserve_price, buy_now_price,
			start_time, end_time, status, quantity, reserved, sold
		FROM auctions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list auctions: %w", err)
	}
	defer rows.Close()

	var out []model.Auction
	for rows.Next() {
		a, err := s.scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RecordBid demotes the winning bid, inserts the new one and raises the
// auction's current bid, all in one transaction.
func (s *SQLiteStore) RecordBid(bid model.Bid) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin record bid: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(1) FROM auctions WHERE auction_id = ?`, bid.AuctionID).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: record bid for auction %s: %w", bid.AuctionID, err)
	}
	if exists == 0 {
		return fmt.Errorf("sqlite: record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}

	if _, err := tx.Exec(`UPDATE bids SET status = ? WHERE auction_id = ? AND status = ?`,
		string(model.BidOutbid), bid.AuctionID, string(model.BidWinning)); err != nil {
		return fmt.Errorf("sqlite: demote winning bid for auction %s: %w", bid.AuctionID, err)
	}

	if _, err := tx.Exec(`
		INSERT INTO bids (bid_id, auction_id, user_id, username, amount, is_auto_bid, max_bid, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bid.BidID, bid.AuctionID, bid.UserID, bid.Username, bid.Amount,
		bid.IsAutoBid, bid.MaxBid, string(model.BidWinning), bid.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("sqlite: insert bid %s: %w", bid.BidID, err)
	}

	if _, err := tx.Exec(`UPDATE auctions SET current_bid = ? WHERE auction_id = ?`,
		bid.Amount, bid.AuctionID); err != nil {
		return fmt.Errorf("sqlite: raise current bid for auction %s: %w", bid.AuctionID, err)
	}

	return tx.Commit()
}

// GetBids returns all bids for an auction in chronological order.
func (s *SQLiteStore) GetBids(auctionID string) ([]model.Bid, error) {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM auctions WHERE auction_id = ?`, auctionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("sqlite: get bids for auction %s: %w", auctionID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("sqlite: get bids for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}

	bids, err := s.loadBids(auctionID)
	if err != nil {
		return nil, err
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("sqlite: get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return bids, nil
}

// UpdateStatus moves the auction to a new lifecycle status, enforcing forward
// transitions. Ending an auction reclassifies the winning bid as won.
func (s *SQLiteStore) UpdateStatus(auctionID string, status model.AuctionStatus) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite: begin update status: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRow(`SELECT status FROM auctions WHERE auction_id = ?`, auctionID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: update status for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return fmt.Errorf("sqlite: update status for auction %s: %w", auctionID, err)
	}
	if !model.AuctionStatus(current).CanTransition(status) {
		return fmt.Errorf("sqlite: update status for auction %s: %s -> %s: %w",
			auctionID, current, status, auctionerrors.ErrBadStatus)
	}

	if _, err := tx.Exec(`UPDATE auctions SET status = ? WHERE auction_id = ?`, string(status), auctionID); err != nil {
		return fmt.Errorf("sqlite: update status for auction %s: %w", auctionID, err)
	}

	if status == model.StatusEnded {
		res, err := tx.Exec(`UPDATE bids SET status = ? WHERE auction_id = ? AND status = ?`,
			string(model.BidWon), auctionID, string(model.BidWinning))
		if err != nil {
			return fmt.Errorf("sqlite: settle winning bid for auction %s: %w", auctionID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			if _, err := tx.Exec(`
				UPDATE auctions SET sold = sold + 1
				WHERE auction_id = ? AND (reserve_price <= 0 OR current_bid >= reserve_price)`, auctionID); err != nil {
				return fmt.Errorf("sqlite: bump sold counter for auction %s: %w", auctionID, err)
			}
		}
	}

	return tx.Commit()
}

// UpdateEndTime replaces the auction's end time; end times only move forward.
func (s *SQLiteStore) UpdateEndTime(auctionID string, end time.Time) error {
	res, err := s.db.Exec(`UPDATE auctions SET end_time = ? WHERE auction_id = ? AND end_time <= ?`,
		end.UTC(), auctionID, end.UTC())
	if err != nil {
		return fmt.Errorf("sqlite: update end time for auction %s: %w", auctionID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRow(`SELECT COUNT(1) FROM auctions WHERE auction_id = ?`, auctionID).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: update end time for auction %s: %w", auctionID, err)
		}
		if exists == 0 {
			return fmt.Errorf("sqlite: update end time for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
		}
		return fmt.Errorf("sqlite: update end time for auction %s: end time may not decrease", auctionID)
	}
	return nil
}

// SetWatching adds or removes userID from the auction's watcher set.
func (s *SQLiteStore) SetWatching(auctionID, userID string, watching bool) error {
	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(1) FROM auctions WHERE auction_id = ?`, auctionID).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: set watching for auction %s: %w", auctionID, err)
	}
	if exists == 0 {
		return fmt.Errorf("sqlite: set watching for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}

	var err error
	if watching {
		_, err = s.db.Exec(`INSERT OR IGNORE INTO watchers (auction_id, user_id) VALUES (?, ?)`, auctionID, userID)
	} else {
		_, err = s.db.Exec(`DELETE FROM watchers WHERE auction_id = ? AND user_id = ?`, auctionID, userID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: set watching for auction %s: %w", auctionID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanAuction(row rowScanner) (model.Auction, error) {
	var a model.Auction
	var images, status string
	err := row.Scan(&a.AuctionID, &a.SellerID, &a.Title, &a.Description, &images,
		&a.StartingPrice, &a.CurrentBid, &a.BidIncrement, &a.ReservePrice, &a.BuyNowPrice,
		&a.StartTime, &a.EndTime, &status,
		&a.Inventory.Quantity, &a.Inventory.Reserved, &a.Inventory.Sold)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Auction{}, fmt.Errorf("sqlite: get auction: %w", auctionerrors.ErrAuctionNotFound)
	}
	if err != nil {
		return model.Auction{}, fmt.Errorf("sqlite: scan auction: %w", err)
	}
	a.Status = model.AuctionStatus(status)
	if err := json.Unmarshal([]byte(images), &a.Images); err != nil {
		return model.Auction{}, fmt.Errorf("sqlite: decode images for auction %s: %w", a.AuctionID, err)
	}
	return a, nil
}

func (s *SQLiteStore) loadBids(auctionID string) ([]model.Bid, error) {
	rows, err := s.db.Query(`
		SELECT bid_id, auction_id, user_id, username, amount, is_auto_bid, max_bid, status, created_at
		FROM bids WHERE auction_id = ? ORDER BY rowid`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load bids for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		var status string
		if err := rows.Scan(&b.BidID, &b.AuctionID, &b.UserID, &b.Username, &b.Amount,
			&b.IsAutoBid, &b.MaxBid, &status, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan bid for auction %s: %w", auctionID, err)
		}
		b.Status = model.BidStatus(status)
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func (s *SQLiteStore) loadWatchers(auctionID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT user_id FROM watchers WHERE auction_id = ? ORDER BY user_id`, auctionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load watchers for auction %s: %w", auctionID, err)
	}
	defer rows.Close()

	var watchers []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("sqlite: scan watcher for auction %s: %w", auctionID, err)
		}
		watchers = append(watchers, w)
	}
	return watchers, rows.Err()
}
