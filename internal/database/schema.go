package database

// SQL schemas for all ClickHouse tables

const (
	// RFIDCardsTableSQL creates the rfid_cards credential table
	RFIDCardsTableSQL = `
		CREATE TABLE IF NOT EXISTS rfid_cards (
			card_uid String,
			owner_name String,
			is_active Bool,
			created_at DateTime64(3)
		) ENGINE = ReplacingMergeTree(created_at)
		ORDER BY card_uid
	`

	// AccessCodesTableSQL creates the access_codes table for payable QR codes
	AccessCodesTableSQL = `
		CREATE TABLE IF NOT EXISTS access_codes (
			access_code String,
			status String,
			created_at DateTime64(3),
			used_at Nullable(DateTime64(3))
		) ENGINE = ReplacingMergeTree(created_at)
		ORDER BY access_code
	`

	// TransactionsTableSQL creates the transactions payment table
	TransactionsTableSQL = `
		CREATE TABLE IF NOT EXISTS transactions (
			id String,
			user_id String,
			access_code String,
			amount Float64,
			status String,
			timestamp DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (access_code, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`

	// AccessLogsTableSQL creates the access_logs audit table
	AccessLogsTableSQL = `
		CREATE TABLE IF NOT EXISTS access_logs (
			id String,
			identifier String,
			access_type String,
			status String,
			owner_name String,
			timestamp DateTime64(3)
		) ENGINE = MergeTree()
		ORDER BY (identifier, timestamp)
		PARTITION BY toYYYYMM(timestamp)
	`
)

// AllTables returns all table creation SQL statements
func AllTables() []string {
	return []string{
		RFIDCardsTableSQL,
		AccessCodesTableSQL,
		TransactionsTableSQL,
		AccessLogsTableSQL,
	}
}
