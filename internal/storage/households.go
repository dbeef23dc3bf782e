package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bollette/internal/core"
)

// CreateProfile stores a profile under a caller-supplied ID, typically the
// identity provider's subject.
func (r *Repository) CreateProfile(ctx context.Context, p *core.UserProfile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_profiles (id, display_name, avatar_emoji, household_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.DisplayName, p.AvatarEmoji, p.HouseholdID, p.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *Repository) GetProfile(ctx context.Context, id string) (core.UserProfile, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, display_name, avatar_emoji, household_id, created_at
		 FROM user_profiles WHERE id = ?`, id)

	var (
		p         core.UserProfile
		createdAt int64
	)
	err := row.Scan(&p.ID, &p.DisplayName, &p.AvatarEmoji, &p.HouseholdID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserProfile{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	return p, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, p core.UserProfile) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles SET display_name = ?, avatar_emoji = ? WHERE id = ?`,
		p.DisplayName, p.AvatarEmoji, p.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) SetProfileHousehold(ctx context.Context, profileID, householdID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE user_profiles SET household_id = ? WHERE id = ?`, householdID, profileID)
	if err != nil {
		return fmt.Errorf("update profile household: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) CreateHousehold(ctx context.Context, h *core.Household) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO households (id, name, invite_code, created_at) VALUES (?, ?, ?, ?)`,
			h.ID, h.Name, h.InviteCode, h.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("insert household: %w", err)
		}
		for _, member := range h.Members {
			if err := insertMember(ctx, tx, h.ID, member); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetHousehold(ctx context.Context, id string) (core.Household, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, invite_code, created_at FROM households WHERE id = ?`, id)
	return r.scanHouseholdWithMembers(ctx, row)
}

// FindHouseholdByInvite resolves an invite code to its household.
func (r *Repository) FindHouseholdByInvite(ctx context.Context, code string) (core.Household, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, invite_code, created_at FROM households WHERE invite_code = ?`, code)
	return r.scanHouseholdWithMembers(ctx, row)
}

// AddHouseholdMember links the user to the household. Re-adding an existing
// member is a no-op, so joining twice with the same invite code converges.
func (r *Repository) AddHouseholdMember(ctx context.Context, householdID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO household_members (household_id, user_id) VALUES (?, ?)
		 ON CONFLICT(household_id, user_id) DO NOTHING`,
		householdID, userID)
	if err != nil {
		return fmt.Errorf("insert household member: %w", err)
	}
	return nil
}

// ListMemberProfiles returns the profiles of everyone in the household.
func (r *Repository) ListMemberProfiles(ctx context.Context, householdID string) ([]core.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.display_name, p.avatar_emoji, p.household_id, p.created_at
		 FROM user_profiles p
		 JOIN household_members m ON m.user_id = p.id
		 WHERE m.household_id = ?
		 ORDER BY p.created_at ASC, p.id ASC`, householdID)
	if err != nil {
		return nil, fmt.Errorf("query member profiles: %w", err)
	}
	defer rows.Close()

	var out []core.UserProfile
	for rows.Next() {
		var (
			p         core.UserProfile
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.AvatarEmoji, &p.HouseholdID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan member profile: %w", err)
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListHouseholds returns every household ID. The provisioning worker walks
// this list each cycle.
func (r *Repository) ListHouseholds(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM households ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query households: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan household id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SetInviteCode rotates the household's invite code. The UNIQUE constraint
// rejects a code already held by another household.
func (r *Repository) SetInviteCode(ctx context.Context, householdID, code string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE households SET invite_code = ? WHERE id = ?`, code, householdID)
	if err != nil {
		return fmt.Errorf("update invite code: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *Repository) scanHouseholdWithMembers(ctx context.Context, row *sql.Row) (core.Household, error) {
	var (
		h         core.Household
		createdAt int64
	)
	err := row.Scan(&h.ID, &h.Name, &h.InviteCode, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Household{}, core.ErrNotFound
	}
	if err != nil {
		return core.Household{}, fmt.Errorf("get household: %w", err)
	}
	h.CreatedAt = time.Unix(createdAt, 0).UTC()

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM household_members WHERE household_id = ?`, h.ID)
	if err != nil {
		return core.Household{}, fmt.Errorf("query household members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return core.Household{}, fmt.Errorf("scan household member: %w", err)
		}
		h.Members = append(h.Members, userID)
	}
	return h, rows.Err()
}

func insertMember(ctx context.Context, tx *sql.Tx, householdID, userID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO household_members (household_id, user_id) VALUES (?, ?)
		 ON CONFLICT(household_id, user_id) DO NOTHING`,
		householdID, userID)
	if err != nil {
		return fmt.Errorf("insert household member: %w", err)
	}
	return nil
}
