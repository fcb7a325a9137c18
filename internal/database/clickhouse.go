package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"parking-backend/internal/models"
)

// ClickHouseDB is the credential/payment ledger. Lookups that find no
// row return (nil, nil); errors mean the store is unreachable and the
// caller fails closed.
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})

	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Printf("Connected to ClickHouse at %s", addr)

	db := &ClickHouseDB{conn: conn}

	// Initialize schema
	if err := db.InitSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema() error {
	ctx := context.Background()

	tables := AllTables()
	for _, tableSQL := range tables {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// FindCardByUID looks up an RFID credential by card UID.
func (db *ClickHouseDB) FindCardByUID(ctx context.Context, cardUID string) (*models.RFIDCard, error) {
	query := `
		SELECT card_uid, owner_name, is_active, created_at
		FROM rfid_cards FINAL
		WHERE card_uid = ?
		LIMIT 1
	`

	rows, err := db.conn.Query(ctx, query, cardUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rfid card: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var card models.RFIDCard
	if err := rows.Scan(&card.CardUID, &card.OwnerName, &card.IsActive, &card.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan rfid card: %w", err)
	}
	return &card, nil
}

// InsertAccessCode registers a freshly generated QR code as active.
func (db *ClickHouseDB) InsertAccessCode(ctx context.Context, code string) error {
	query := `
		INSERT INTO access_codes (access_code, status, created_at)
		VALUES (?, ?, ?)
	`

	err := db.conn.Exec(ctx, query, code, string(models.CodeActive), time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert access code: %w", err)
	}
	return nil
}

// FindAccessCode looks up a QR code and its current lifecycle status.
func (db *ClickHouseDB) FindAccessCode(ctx context.Context, code string) (*models.AccessCode, error) {
	query := `
		SELECT access_code, status, created_at, used_at
		FROM access_codes FINAL
		WHERE access_code = ?
		LIMIT 1
	`

	rows, err := db.conn.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query access code: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var (
		ac     models.AccessCode
		status string
	)
	if err := rows.Scan(&ac.Code, &status, &ac.CreatedAt, &ac.UsedAt); err != nil {
		return nil, fmt.Errorf("failed to scan access code: %w", err)
	}
	ac.Status = models.CodeStatus(status)
	return &ac, nil
}

// UpdateAccessCodeStatus persists a lifecycle transition for a code.
// The table is a ReplacingMergeTree keyed by code, so the update is an
// insert with a newer version timestamp.
func (db *ClickHouseDB) UpdateAccessCodeStatus(ctx context.Context, code string, status models.CodeStatus) error {
	query := `
		INSERT INTO access_codes (access_code, status, created_at, used_at)
		VALUES (?, ?, ?, ?)
	`

	var usedAt *time.Time
	if status == models.CodeUsed {
		now := time.Now()
		usedAt = &now
	}

	err := db.conn.Exec(ctx, query, code, string(status), time.Now(), usedAt)
	if err != nil {
		return fmt.Errorf("failed to update access code status: %w", err)
	}
	return nil
}

// FindCompletedTransaction returns the completed payment tied to a code, if any.
func (db *ClickHouseDB) FindCompletedTransaction(ctx context.Context, code string) (*models.Transaction, error) {
	query := `
		SELECT id, user_id, access_code, amount, status, timestamp
		FROM transactions
		WHERE access_code = ? AND status = 'completed'
		ORDER BY timestamp DESC
		LIMIT 1
	`

	rows, err := db.conn.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var tx models.Transaction
	if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Code, &tx.Amount, &tx.Status, &tx.Timestamp); err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &tx, nil
}

// InsertAccessLog records one access attempt. Best effort: callers log
// the error and carry on.
func (db *ClickHouseDB) InsertAccessLog(ctx context.Context, entry *models.AccessLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query := `
		INSERT INTO access_logs (id, identifier, access_type, status, owner_name, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		entry.ID,
		entry.Identifier,
		entry.AccessType,
		entry.Status,
		entry.OwnerName,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access log: %w", err)
	}
	return nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		log.Println("ClickHouse connection closed")
	}
	return nil
}
