package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/vkral/souffleur/internal/store"
)

// handleListInterviews returns the caller's past interviews, newest first.
func (r *Router) handleListInterviews(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, `{"error": "invalid limit"}`, http.StatusBadRequest)
			return
		}
		limit = n
	}

	interviews, err := r.store.ListInterviews(req.Context(), authUser.ID, limit)
	if err != nil {
		r.logger.Printf("interviews: list failed for %s: %v", authUser.ID, err)
		captureError(req, err, "failed to list interviews")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"interviews": interviews})
}

// handleGetInterview returns a single interview with its full transcript.
// Only the owner may read it.
func (r *Router) handleGetInterview(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	interviewID := req.PathValue("id")
	if interviewID == "" {
		http.Error(w, `{"error": "interview id is required"}`, http.StatusBadRequest)
		return
	}

	ownerID, err := r.store.GetInterviewUserID(req.Context(), interviewID)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			http.Error(w, `{"error": "interview not found"}`, http.StatusNotFound)
			return
		}
		r.logger.Printf("interviews: owner lookup failed for %s: %v", interviewID, err)
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}
	if ownerID != authUser.ID {
		// Hide the existence of other users' interviews.
		http.Error(w, `{"error": "interview not found"}`, http.StatusNotFound)
		return
	}

	detail, err := r.store.GetInterviewDetail(req.Context(), interviewID)
	if err != nil {
		r.logger.Printf("interviews: detail failed for %s: %v", interviewID, err)
		captureError(req, err, "failed to load interview detail")
		http.Error(w, `{"error": "database error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}
