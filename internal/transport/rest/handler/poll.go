package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"pulsepoll/internal/service"
	"pulsepoll/internal/transport/rest/middleware"
)

// PollHandler handles poll and vote endpoints.
type PollHandler struct {
	pollSvc *service.PollService
	voteSvc *service.VoteService
}

// NewPollHandler creates a new poll handler.
func NewPollHandler(pollSvc *service.PollService, voteSvc *service.VoteService) *PollHandler {
	return &PollHandler{
		pollSvc: pollSvc,
		voteSvc: voteSvc,
	}
}

// CreatePollRequest is the request body for creating a poll.
type CreatePollRequest struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Fingerprint string   `json:"fingerprint,omitempty"`
}

// Create handles POST /api/v1/polls
func (h *PollHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	poll, err := h.pollSvc.CreatePoll(r.Context(), req.Question, req.Options, req.Fingerprint)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"pollId":    poll.ID,
		"shareCode": poll.ShareCode,
		"createdAt": poll.CreatedAt,
	})
}

// Get handles GET /api/v1/polls/{shareCode}
func (h *PollHandler) Get(w http.ResponseWriter, r *http.Request) {
	shareCode := mux.Vars(r)["shareCode"]
	fingerprint := r.URL.Query().Get("fingerprint")

	detail, err := h.pollSvc.GetPoll(r.Context(), shareCode, fingerprint)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// VoteRequest is the request body for casting a vote.
type VoteRequest struct {
	OptionID    string `json:"optionId"`
	Fingerprint string `json:"fingerprint"`
}

// Vote handles POST /api/v1/polls/{shareCode}/vote
func (h *PollHandler) Vote(w http.ResponseWriter, r *http.Request) {
	shareCode := mux.Vars(r)["shareCode"]

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	origin := middleware.ClientIP(r)

	tally, err := h.voteSvc.SubmitVote(r.Context(), shareCode, req.OptionID, req.Fingerprint, origin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"tallies":    tally.Counts,
		"totalVotes": tally.Total,
	})
}

// Deactivate handles POST /api/v1/polls/{shareCode}/deactivate
func (h *PollHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Reactivate handles POST /api/v1/polls/{shareCode}/reactivate
func (h *PollHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *PollHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	shareCode := mux.Vars(r)["shareCode"]

	if err := h.pollSvc.SetActive(r.Context(), shareCode, active); err != nil {
		writeServiceError(w, err)
		return
	}

	action := "deactivated"
	if active {
		action = "reactivated"
	}
	log.Printf("Poll %s %s by %s", shareCode, action, middleware.AdminIDFromContext(r.Context()))

	writeJSON(w, http.StatusOK, map[string]bool{"isActive": active})
}

// Delete handles DELETE /api/v1/polls/{shareCode}
func (h *PollHandler) Delete(w http.ResponseWriter, r *http.Request) {
	shareCode := mux.Vars(r)["shareCode"]

	if err := h.pollSvc.DeletePoll(r.Context(), shareCode); err != nil {
		writeServiceError(w, err)
		return
	}

	log.Printf("Poll %s deleted by %s", shareCode, middleware.AdminIDFromContext(r.Context()))

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// writeServiceError maps service errors onto the API's status taxonomy. The
// two 409s carry distinguishable messages on purpose.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, service.ErrPollNotFound):
		writeError(w, http.StatusNotFound, "Poll not found")
	case errors.Is(err, service.ErrPollInactive):
		writeError(w, http.StatusForbidden, "This poll is no longer accepting votes")
	case errors.Is(err, service.ErrInvalidOption):
		writeError(w, http.StatusBadRequest, "Invalid option for this poll")
	case errors.Is(err, service.ErrDuplicateNetwork):
		writeConflict(w, "A vote from your network has already been recorded for this poll.")
	case errors.Is(err, service.ErrDuplicateIdentity):
		writeConflict(w, "You have already voted on this poll.")
	default:
		log.Printf("Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func writeConflict(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusConflict, map[string]string{
		"error":   "Already voted",
		"message": message,
	})
}
