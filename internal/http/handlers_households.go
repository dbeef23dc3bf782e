package http

import (
	"net/http"
	"time"

	"bollette/internal/core"
)

type createProfileRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarEmoji string `json:"avatar_emoji,omitempty"`
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarEmoji string `json:"avatar_emoji,omitempty"`
}

type profileResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarEmoji string `json:"avatar_emoji,omitempty"`
	HouseholdID string `json:"household_id,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toProfileResponse(p core.UserProfile) profileResponse {
	return profileResponse{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		AvatarEmoji: p.AvatarEmoji,
		HouseholdID: p.HouseholdID,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile := &core.UserProfile{
		ID:          req.ID,
		DisplayName: sanitizeInput(req.DisplayName),
		AvatarEmoji: req.AvatarEmoji,
	}
	if err := s.households.CreateProfile(r.Context(), profile); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toProfileResponse(*profile))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.households.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProfileResponse(profile))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := s.households.GetProfile(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	profile.DisplayName = sanitizeInput(req.DisplayName)
	profile.AvatarEmoji = req.AvatarEmoji
	if err := s.households.UpdateProfile(r.Context(), profile); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toProfileResponse(profile))
}

type createHouseholdRequest struct {
	Name      string `json:"name"`
	CreatorID string `json:"creator_id"`
}

type joinHouseholdRequest struct {
	InviteCode string `json:"invite_code"`
	UserID     string `json:"user_id"`
}

type householdResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Members    []string `json:"members"`
	InviteCode string   `json:"invite_code"`
	CreatedAt  string   `json:"created_at"`
}

func toHouseholdResponse(h core.Household) householdResponse {
	return householdResponse{
		ID:         h.ID,
		Name:       h.Name,
		Members:    h.Members,
		InviteCode: h.InviteCode,
		CreatedAt:  h.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleCreateHousehold(w http.ResponseWriter, r *http.Request) {
	var req createHouseholdRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	household, err := s.households.CreateHousehold(r.Context(), sanitizeInput(req.Name), req.CreatorID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toHouseholdResponse(household))
}

func (s *Server) handleGetHousehold(w http.ResponseWriter, r *http.Request) {
	household, err := s.households.GetHousehold(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toHouseholdResponse(household))
}

func (s *Server) handleJoinHousehold(w http.ResponseWriter, r *http.Request) {
	var req joinHouseholdRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	household, err := s.households.JoinHousehold(r.Context(), req.InviteCode, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toHouseholdResponse(household))
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.households.Members(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]profileResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toProfileResponse(m))
	}
	writeJSON(w, r, http.StatusOK, out)
}

type inviteCodeResponse struct {
	InviteCode string `json:"invite_code"`
}

func (s *Server) handleRegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.households.RegenerateInviteCode(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, inviteCodeResponse{InviteCode: code})
}
