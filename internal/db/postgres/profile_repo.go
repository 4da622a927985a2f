package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"Ensign/internal/core/profiles"
)

type postgresProfileRepo struct {
	db *sql.DB
}

// NewProfileRepository creates a new PostgreSQL profile repository.
// It also satisfies profiles.NameClaimer, so name transfers run in a
// single transaction.
func NewProfileRepository(db *sql.DB) profiles.ProfileRepository {
	return &postgresProfileRepo{db: db}
}

// GetByAddress retrieves a profile by its lowercase address.
func (r *postgresProfileRepo) GetByAddress(ctx context.Context, address string) (*profiles.Profile, error) {
	query := `SELECT address, name, data, updated_at FROM profiles WHERE address = $1`
	return r.getProfile(ctx, query, address)
}

// GetByName retrieves the profile currently holding a canonical name.
func (r *postgresProfileRepo) GetByName(ctx context.Context, name string) (*profiles.Profile, error) {
	query := `SELECT address, name, data, updated_at FROM profiles WHERE name = $1`
	return r.getProfile(ctx, query, name)
}

func (r *postgresProfileRepo) getProfile(ctx context.Context, query, arg string) (*profiles.Profile, error) {
	profile := &profiles.Profile{}
	var name sql.NullString
	var data []byte

	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&profile.Address, &name, &data, &profile.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, profiles.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	profile.Name = name.String
	if err := json.Unmarshal(data, &profile.Data); err != nil {
		return nil, fmt.Errorf("failed to decode profile data for %s: %w", profile.Address, err)
	}

	return profile, nil
}

// Upsert creates or fully replaces the row keyed by profile.Address.
// updated_at never moves backwards even if a slower refresh lands last.
func (r *postgresProfileRepo) Upsert(ctx context.Context, profile *profiles.Profile) error {
	return r.upsert(ctx, r.db, profile)
}

// ClearNameExcept removes the name claim from every row other than keepAddress.
func (r *postgresProfileRepo) ClearNameExcept(ctx context.Context, name, keepAddress string) error {
	return r.clearNameExcept(ctx, r.db, name, keepAddress)
}

// UpsertClaimingName reconciles a name transfer atomically: the previous
// holder loses the name and the new row is written in one transaction.
func (r *postgresProfileRepo) UpsertClaimingName(ctx context.Context, profile *profiles.Profile) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin name claim transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if profile.Name != "" {
		if err := r.clearNameExcept(ctx, tx, profile.Name, profile.Address); err != nil {
			return err
		}
	}
	if err := r.upsert(ctx, tx, profile); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit name claim transaction: %w", err)
	}
	return nil
}

// execer covers *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *postgresProfileRepo) upsert(ctx context.Context, db execer, profile *profiles.Profile) error {
	data, err := json.Marshal(profile.Data)
	if err != nil {
		return fmt.Errorf("failed to encode profile data for %s: %w", profile.Address, err)
	}

	query := `
		INSERT INTO profiles (address, name, data, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		ON CONFLICT (address)
		DO UPDATE SET
			name = EXCLUDED.name,
			data = EXCLUDED.data,
			updated_at = GREATEST(profiles.updated_at, EXCLUDED.updated_at)`

	_, err = db.ExecContext(ctx, query, profile.Address, profile.Name, data, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile %s: %w", profile.Address, err)
	}
	return nil
}

func (r *postgresProfileRepo) clearNameExcept(ctx context.Context, db execer, name, keepAddress string) error {
	query := `UPDATE profiles SET name = NULL WHERE name = $1 AND address != $2`

	_, err := db.ExecContext(ctx, query, name, keepAddress)
	if err != nil {
		return fmt.Errorf("failed to clear name %s: %w", name, err)
	}
	return nil
}
