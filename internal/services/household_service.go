package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"

	"bollette/internal/core"
	"bollette/internal/storage"
)

// Invite codes avoid characters easy to misread over the phone (0/O, 1/I).
const inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const inviteCodeLength = 6

// HouseholdService manages profiles, households, and membership.
type HouseholdService struct {
	storage *storage.Repository
}

func NewHouseholdService(storage *storage.Repository) *HouseholdService {
	return &HouseholdService{storage: storage}
}

// CreateProfile registers a profile under the identity provider's subject.
func (s *HouseholdService) CreateProfile(ctx context.Context, profile *core.UserProfile) error {
	if strings.TrimSpace(profile.ID) == "" {
		return core.ErrEmptyName
	}
	if strings.TrimSpace(profile.DisplayName) == "" {
		return core.ErrEmptyName
	}

	if err := s.storage.CreateProfile(ctx, profile); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}

	slog.InfoContext(ctx, "Created user profile", "user_id", profile.ID)
	return nil
}

func (s *HouseholdService) GetProfile(ctx context.Context, id string) (core.UserProfile, error) {
	return s.storage.GetProfile(ctx, id)
}

func (s *HouseholdService) UpdateProfile(ctx context.Context, profile core.UserProfile) error {
	if strings.TrimSpace(profile.DisplayName) == "" {
		return core.ErrEmptyName
	}
	return s.storage.UpdateProfile(ctx, profile)
}

// CreateHousehold creates a household with a fresh invite code and the
// creator as its first member.
func (s *HouseholdService) CreateHousehold(ctx context.Context, name, creatorID string) (core.Household, error) {
	if strings.TrimSpace(name) == "" {
		return core.Household{}, core.ErrEmptyName
	}

	household := &core.Household{
		Name:       name,
		Members:    []string{creatorID},
		InviteCode: generateInviteCode(),
	}
	if err := s.storage.CreateHousehold(ctx, household); err != nil {
		return core.Household{}, fmt.Errorf("create household: %w", err)
	}

	if err := s.storage.SetProfileHousehold(ctx, creatorID, household.ID); err != nil {
		return core.Household{}, fmt.Errorf("link creator profile: %w", err)
	}

	slog.InfoContext(ctx, "Created household",
		"household_id", household.ID, "creator_id", creatorID)

	return *household, nil
}

func (s *HouseholdService) GetHousehold(ctx context.Context, id string) (core.Household, error) {
	return s.storage.GetHousehold(ctx, id)
}

// JoinHousehold adds the user to the household behind the invite code.
// Joining twice with the same code converges on a single membership.
func (s *HouseholdService) JoinHousehold(ctx context.Context, inviteCode, userID string) (core.Household, error) {
	household, err := s.storage.FindHouseholdByInvite(ctx, strings.ToUpper(strings.TrimSpace(inviteCode)))
	if err != nil {
		return core.Household{}, err
	}

	if err := s.storage.AddHouseholdMember(ctx, household.ID, userID); err != nil {
		return core.Household{}, fmt.Errorf("add member: %w", err)
	}
	if err := s.storage.SetProfileHousehold(ctx, userID, household.ID); err != nil {
		return core.Household{}, fmt.Errorf("link member profile: %w", err)
	}

	slog.InfoContext(ctx, "User joined household",
		"household_id", household.ID, "user_id", userID)

	return s.storage.GetHousehold(ctx, household.ID)
}

// Members returns the profiles of everyone in the household.
func (s *HouseholdService) Members(ctx context.Context, householdID string) ([]core.UserProfile, error) {
	return s.storage.ListMemberProfiles(ctx, householdID)
}

// RegenerateInviteCode invalidates the current invite code by replacing it.
// Retries on the unlikely collision with another household's code.
func (s *HouseholdService) RegenerateInviteCode(ctx context.Context, householdID string) (string, error) {
	var lastErr error
	for range 3 {
		code := generateInviteCode()
		if err := s.storage.SetInviteCode(ctx, householdID, code); err != nil {
			lastErr = err
			continue
		}
		slog.InfoContext(ctx, "Regenerated invite code", "household_id", householdID)
		return code, nil
	}
	return "", fmt.Errorf("regenerate invite code: %w", lastErr)
}

func generateInviteCode() string {
	buf := make([]byte, inviteCodeLength)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = inviteAlphabet[int(b)%len(inviteAlphabet)]
	}
	return string(buf)
}
