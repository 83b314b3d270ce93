package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nextlevelbuilder/shopclaw/internal/crypto"
	"github.com/nextlevelbuilder/shopclaw/internal/store"
)

// OwnerStore implements store.OwnerStore on SQLite.
type OwnerStore struct {
	d *DB
}

// ActiveOwner returns the single active owner, with its platform token
// decrypted. A corrupt token surfaces as an error rather than an empty
// credential.
func (s *OwnerStore) ActiveOwner(ctx context.Context) (*store.Owner, error) {
	row := s.d.db.QueryRowContext(ctx, `
		SELECT id, name, language, encrypted_token, active, activated_at, updated_at
		FROM owners WHERE active = 1 ORDER BY id LIMIT 1`)
	o, err := scanOwner(row)
	if err != nil {
		return nil, err
	}
	if o.EncryptedToken != "" {
		token, err := crypto.Decrypt(o.EncryptedToken, s.d.key)
		if err != nil {
			return nil, fmt.Errorf("decrypt owner token: %w", err)
		}
		o.EncryptedToken = token
	}
	return o, nil
}

// UpsertOwner inserts or updates an owner keyed by name. The token in
// owner.EncryptedToken is taken as plaintext and encrypted before write.
func (s *OwnerStore) UpsertOwner(ctx context.Context, owner *store.Owner) (int64, error) {
	encrypted := ""
	if owner.EncryptedToken != "" {
		var err error
		encrypted, err = crypto.Encrypt(owner.EncryptedToken, s.d.key)
		if err != nil {
			return 0, fmt.Errorf("encrypt owner token: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.d.db.ExecContext(ctx, `
		INSERT INTO owners (name, language, encrypted_token, active, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			language = excluded.language,
			encrypted_token = CASE WHEN excluded.encrypted_token != '' THEN excluded.encrypted_token ELSE owners.encrypted_token END,
			updated_at = excluded.updated_at`,
		owner.Name, owner.Language, encrypted, boolInt(owner.Active), now)
	if err != nil {
		return 0, fmt.Errorf("upsert owner: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		// LastInsertId is unreliable on conflict updates, confirm by name.
		var confirmed int64
		if err := s.d.db.QueryRowContext(ctx,
			`SELECT id FROM owners WHERE name = ?`, owner.Name).Scan(&confirmed); err == nil {
			return confirmed, nil
		}
		return id, nil
	}
	var id int64
	err = s.d.db.QueryRowContext(ctx, `SELECT id FROM owners WHERE name = ?`, owner.Name).Scan(&id)
	return id, err
}

// Activate enables the owner and records the activation instant.
// Any previously active owner is deactivated first.
func (s *OwnerStore) Activate(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE owners SET active = 0 WHERE active = 1 AND id != ?`, id); err != nil {
		return fmt.Errorf("deactivate owners: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE owners SET active = 1, activated_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
	if err != nil {
		return fmt.Errorf("activate owner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

// LastActivation reports the active owner's activation time for
// staleness checks. The conversation id is accepted for interface
// parity; all conversations share the single active owner.
func (s *OwnerStore) LastActivation(ctx context.Context, conversationID string) (time.Time, bool) {
	var raw sql.NullString
	err := s.d.db.QueryRowContext(ctx,
		`SELECT activated_at FROM owners WHERE active = 1 ORDER BY id LIMIT 1`).Scan(&raw)
	if err != nil || !raw.Valid {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw.String)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOwner(row rowScanner) (*store.Owner, error) {
	var (
		o           store.Owner
		active      int
		activatedAt sql.NullString
		updatedAt   string
	)
	err := row.Scan(&o.ID, &o.Name, &o.Language, &o.EncryptedToken, &active, &activatedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan owner: %w", err)
	}
	o.Active = active != 0
	if activatedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, activatedAt.String); err == nil {
			o.ActivatedAt = t
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		o.UpdatedAt = t
	}
	return &o, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
