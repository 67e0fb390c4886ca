// Helper functions for sending standardized JSON responses.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inkroad/inkroad/internal/models"
)

// RespondWithJSON writes a JSON response with the given status code and payload.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to marshal response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// RespondWithError writes a standardized JSON error response.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithServiceError maps the service layer's sentinel errors onto HTTP
// status codes. Anything unrecognized is a plain 500.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotConfigured):
		RespondWithError(w, http.StatusConflict, "No site credentials configured")
	case errors.Is(err, models.ErrNotFound):
		RespondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, models.ErrChallengeBlocked):
		RespondWithError(w, http.StatusBadGateway, "Blocked by the site's challenge page")
	case errors.Is(err, models.ErrRetrievalFailed):
		RespondWithError(w, http.StatusBadGateway, "Could not retrieve page from the site")
	default:
		RespondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
