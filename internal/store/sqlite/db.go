package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// Open creates or opens the SQLite database at path and returns the
// wired store set. encryptionKey protects owner platform tokens at rest.
func Open(path, encryptionKey string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	d := &DB{db: db, key: encryptionKey}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// DB holds the shared connection behind every store implementation.
type DB struct {
	db  *sql.DB
	key string
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Stores returns the aggregate interface set backed by this database.
func (d *DB) Stores() store.Stores {
	return store.Stores{
		Owners:   &OwnerStore{d},
		Catalog:  &CatalogStore{d},
		Orders:   &OrderStore{d},
		Messages: &MessageStore{d},
	}
}

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS owners (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		name            TEXT NOT NULL UNIQUE,
		language        TEXT NOT NULL DEFAULT 'en',
		encrypted_token TEXT NOT NULL DEFAULT '',
		active          INTEGER NOT NULL DEFAULT 0,
		activated_at    TEXT,
		updated_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS products (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id  INTEGER NOT NULL REFERENCES owners(id),
		name      TEXT NOT NULL,
		price     REAL NOT NULL,
		currency  TEXT NOT NULL DEFAULT 'USD',
		photo_url TEXT NOT NULL DEFAULT '',
		active    INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_products_owner ON products(owner_id, active);

	CREATE TABLE IF NOT EXISTS orders (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		number          TEXT NOT NULL UNIQUE,
		owner_id        INTEGER NOT NULL REFERENCES owners(id),
		conversation_id TEXT NOT NULL,
		customer_name   TEXT NOT NULL DEFAULT '',
		contact         TEXT NOT NULL DEFAULT '',
		notes           TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		total           REAL NOT NULL,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_conversation ON orders(conversation_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS order_lines (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id   INTEGER NOT NULL REFERENCES orders(id),
		product_id INTEGER NOT NULL DEFAULT 0,
		name       TEXT NOT NULL,
		quantity   INTEGER NOT NULL,
		unit_price REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);

	CREATE TABLE IF NOT EXISTS inbound_messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		update_id       INTEGER NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		sender_id       TEXT NOT NULL,
		text            TEXT NOT NULL,
		timestamp       INTEGER NOT NULL,
		processed       INTEGER NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_inbound_conversation ON inbound_messages(conversation_id, id);
	CREATE INDEX IF NOT EXISTS idx_inbound_processed ON inbound_messages(processed, created_at);
	`
	_, err := d.db.Exec(schema)
	return err
}
