package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// CatalogStore implements store.CatalogStore on SQLite.
type CatalogStore struct {
	d *DB
}

// FindProductByName matches an active product case-insensitively.
func (s *CatalogStore) FindProductByName(ctx context.Context, ownerID int64, name string) (*store.Product, error) {
	row := s.d.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, price, currency, photo_url, active
		FROM products
		WHERE owner_id = ? AND active = 1 AND name = ? COLLATE NOCASE
		LIMIT 1`, ownerID, name)
	return scanProduct(row)
}

// ListProducts returns the owner's active products ordered by name.
func (s *CatalogStore) ListProducts(ctx context.Context, ownerID int64) ([]*store.Product, error) {
	rows, err := s.d.db.QueryContext(ctx, `
		SELECT id, owner_id, name, price, currency, photo_url, active
		FROM products
		WHERE owner_id = ? AND active = 1
		ORDER BY name COLLATE NOCASE`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []*store.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddProduct inserts a product and returns its id.
func (s *CatalogStore) AddProduct(ctx context.Context, p *store.Product) (int64, error) {
	res, err := s.d.db.ExecContext(ctx, `
		INSERT INTO products (owner_id, name, price, currency, photo_url, active)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.Name, p.Price, p.Currency, p.PhotoURL, boolInt(p.Active))
	if err != nil {
		return 0, fmt.Errorf("add product: %w", err)
	}
	return res.LastInsertId()
}

func scanProduct(row rowScanner) (*store.Product, error) {
	var (
		p      store.Product
		active int
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Price, &p.Currency, &p.PhotoURL, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Active = active != 0
	return &p, nil
}
