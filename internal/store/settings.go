package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elite6108/sitesafe/internal/domain"
)

// Settings returns the company settings row or ErrNotFound if none was saved.
func (s *Store) Settings(ctx context.Context) (*domain.CompanySettings, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM company_settings WHERE id = 1`).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	var settings domain.CompanySettings
	if err := json.Unmarshal([]byte(payload), &settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings *domain.CompanySettings) error {
	settings.UpdatedAt = s.now()
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return withRetry(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO company_settings (id, payload, updated_at) VALUES (1, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
			string(payload), formatTime(settings.UpdatedAt),
		)
		return err
	})
}

// FileByObject finds the metadata row for bucket/name.
func (s *Store) FileByObject(ctx context.Context, bucket, name string) (*domain.StoredFile, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM stored_files
		 WHERE json_extract(payload, '$.bucket') = ? AND json_extract(payload, '$.name') = ?`,
		bucket, name,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	var file domain.StoredFile
	if err := json.Unmarshal([]byte(payload), &file); err != nil {
		return nil, fmt.Errorf("decode file: %w", err)
	}
	return &file, nil
}

// StaffByEmail matches case-insensitively.
func (s *Store) StaffByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrNotFound
	}
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM staff WHERE lower(json_extract(payload, '$.email')) = ? LIMIT 1`, email,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	var member domain.StaffMember
	if err := json.Unmarshal([]byte(payload), &member); err != nil {
		return nil, fmt.Errorf("decode staff: %w", err)
	}
	return &member, nil
}
