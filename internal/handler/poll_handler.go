package handler

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"votecore/internal/domain"
	"votecore/internal/middleware"
	"votecore/internal/service"
	apperrors "votecore/pkg/errors"
	"votecore/pkg/logger"
)

const maxBodyBytes = 1 << 20

type PollHandler struct {
	voting  *service.VotingService
	results *service.ResultService
	logger  *logger.Logger
}

func NewPollHandler(voting *service.VotingService, results *service.ResultService, logger *logger.Logger) *PollHandler {
	return &PollHandler{
		voting:  voting,
		results: results,
		logger:  logger,
	}
}

// CastVote handles POST /polls/{pollId}/vote
func (h *PollHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollId")

	var req domain.VoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	identity := service.RequestIdentity{
		Address: middleware.ClientIP(r),
		Session: middleware.SessionID(r),
	}
	if user := middleware.UserFromContext(r.Context()); user != nil {
		identity.UserID = user.ID
	}

	receipt, err := h.voting.CastVote(r.Context(), pollID, req.OptionText, identity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, receipt)
}

// GetResults handles GET /polls/{pollId}/results
func (h *PollHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollId")

	results, err := h.results.GetResults(r.Context(), pollID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	etag := h.generateETag(results)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	h.respondJSON(w, http.StatusOK, results)
}

// GetPoll handles GET /polls/{pollId}
func (h *PollHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "pollId")

	var userID string
	if user := middleware.UserFromContext(r.Context()); user != nil {
		userID = user.ID
	}

	detail, err := h.voting.GetPollDetail(r.Context(), pollID, userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, detail)
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.respondError(w, r, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	var req service.CreatePollRequest
	if !h.decode(w, r, &req) {
		return
	}

	poll, err := h.voting.CreatePoll(r.Context(), user.ID, req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, poll)
}

// ListPolls handles GET /polls?is_active=&creator=&search=&date_from=&date_to=
func (h *PollHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	filter, err := parsePollFilter(r.URL.Query())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	polls, err := h.voting.ListPolls(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(polls),
		"polls": polls,
	})
}

// ListUserPolls handles GET /user/polls
func (h *PollHandler) ListUserPolls(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.respondError(w, r, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	polls, err := h.voting.ListUserPolls(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(polls),
		"polls": polls,
	})
}

// ListUserVotes handles GET /user/votes
func (h *PollHandler) ListUserVotes(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.respondError(w, r, apperrors.NewAuthenticationError("Authentication required"))
		return
	}

	votes, err := h.voting.ListUserVotes(r.Context(), user.ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(votes),
		"votes": votes,
	})
}

func parsePollFilter(q url.Values) (domain.PollFilter, error) {
	filter := domain.PollFilter{
		CreatorID: strings.TrimSpace(q.Get("creator")),
		Search:    q.Get("search"),
	}

	if raw := q.Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, apperrors.NewValidationError("is_active must be a boolean", map[string]interface{}{"field": "is_active"})
		}
		filter.IsActive = &active
	}

	var err error
	if filter.CreatedFrom, err = parseDateParam(q, "date_from", false); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = parseDateParam(q, "date_to", true); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseDateParam accepts RFC 3339 or a bare date. A bare date_to covers the whole day.
func parseDateParam(q url.Values, name string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperrors.NewValidationError(name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp",
			map[string]interface{}{"field": name})
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *PollHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondError(w, r, apperrors.NewValidationError("Invalid request body", nil))
		return false
	}
	return true
}

func (h *PollHandler) generateETag(data interface{}) string {
	jsonData, _ := json.Marshal(data)
	hash := md5.Sum(jsonData)
	return fmt.Sprintf(`"%x"`, hash)
}

func (h *PollHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, data)
}

func (h *PollHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	middleware.WriteError(w, r, toAppError(err), h.logger)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
