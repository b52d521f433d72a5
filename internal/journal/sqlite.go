package journal

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ladderbot/internal/ladder/model"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal is a durable Journal backed by SQLite in WAL mode. Each
// record is stored as a JSON blob keyed by RecordKey with a checksum
// verified on every read, mirroring the source material's state-store
// crash-recovery discipline applied here at record granularity instead
// of one big blob.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (creating if necessary) the journal database at
// dbPath and ensures its schema exists.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
CREATE TABLE IF NOT EXISTS ladder_orders (
	record_key TEXT PRIMARY KEY,
	purpose    TEXT NOT NULL,
	pair       TEXT NOT NULL,
	exchange   TEXT NOT NULL,
	side       TEXT NOT NULL,
	is_processed INTEGER NOT NULL,
	data       TEXT NOT NULL,
	checksum   BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ladder_orders_query ON ladder_orders(purpose, pair, exchange, is_processed);
`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func (j *SQLiteJournal) Query(ctx context.Context, q Query) ([]*model.Order, error) {
	query := `SELECT data, checksum FROM ladder_orders WHERE purpose = ? AND pair = ? AND exchange = ?`
	args := []interface{}{q.Purpose, q.Pair, q.Exchange}

	if q.Processed != nil {
		query += ` AND is_processed = ?`
		processed := 0
		if *q.Processed {
			processed = 1
		}
		args = append(args, processed)
	}
	query += ` ORDER BY side ASC`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var results []*model.Order
	for rows.Next() {
		var data string
		var checksum []byte
		if err := rows.Scan(&data, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}

		order, err := decodeRecord(data, checksum)
		if err != nil {
			return nil, err
		}
		results = append(results, order)
	}

	sort.SliceStable(results, func(i, k int) bool {
		if results[i].Side != results[k].Side {
			return results[i].Side < results[k].Side
		}
		return results[i].LadderIndex < results[k].LadderIndex
	})

	return results, rows.Err()
}

func (j *SQLiteJournal) Persist(ctx context.Context, order *model.Order) error {
	tx, err := j.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin journal transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	data, checksum, err := encodeRecord(order)
	if err != nil {
		return err
	}

	processed := 0
	if order.IsProcessed {
		processed = 1
	}

	query := `INSERT OR REPLACE INTO ladder_orders
		(record_key, purpose, pair, exchange, side, is_processed, data, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query, order.RecordKey, order.Purpose, order.Pair, order.Exchange,
		string(order.Side), processed, string(data), checksum, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to write journal record: %w", err)
	}

	return tx.Commit()
}

func (j *SQLiteJournal) Update(ctx context.Context, order *model.Order, flush bool) error {
	// SQLite has no write buffering layer here, so update and persist are
	// the same operation; flush is accepted for interface symmetry with
	// backends that do buffer (e.g. a future batched writer).
	return j.Persist(ctx, order)
}

func encodeRecord(order *model.Order) ([]byte, []byte, error) {
	data, err := json.Marshal(order)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal order record: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, sum[:], nil
}

func decodeRecord(data string, storedChecksum []byte) (*model.Order, error) {
	computed := sha256.Sum256([]byte(data))
	if len(storedChecksum) != len(computed) {
		return nil, fmt.Errorf("journal checksum length mismatch")
	}
	for i := range computed {
		if storedChecksum[i] != computed[i] {
			return nil, fmt.Errorf("journal checksum verification failed: record corrupted")
		}
	}

	var order model.Order
	if err := json.Unmarshal([]byte(data), &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal record: %w", err)
	}
	return &order, nil
}
