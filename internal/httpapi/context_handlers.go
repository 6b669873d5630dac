package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
)

const maxContextBodyBytes = 256 * 1024

// handleSetContext stores the resume and job description used to ground
// suggestion prompts. Uploading new context resets the conversation history.
func (r *Router) handleSetContext(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	var body struct {
		Resume         string `json:"resume"`
		JobDescription string `json:"job_description"`
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxContextBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	body.Resume = strings.TrimSpace(body.Resume)
	body.JobDescription = strings.TrimSpace(body.JobDescription)
	if body.Resume == "" && body.JobDescription == "" {
		http.Error(w, `{"error": "resume or job_description is required"}`, http.StatusBadRequest)
		return
	}

	r.convos.get(authUser.ID).SetContext(body.Resume, body.JobDescription)
	r.logger.Printf("context: stored for user %s (resume: %d chars, job: %d chars)",
		authUser.ID, len(body.Resume), len(body.JobDescription))

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleGetContext reports whether interview context has been uploaded.
func (r *Router) handleGetContext(w http.ResponseWriter, req *http.Request) {
	authUser := getAuthUser(req.Context())
	if authUser == nil {
		http.Error(w, `{"error": "not authenticated"}`, http.StatusUnauthorized)
		return
	}

	cs := r.convos.get(authUser.ID)
	writeJSON(w, http.StatusOK, map[string]any{
		"has_context":  cs.HasContext(),
		"history_size": cs.Len(),
	})
}
