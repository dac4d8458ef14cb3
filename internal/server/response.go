package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Ani-Moopa/moopa-resolver/internal/anilist"
	"github.com/Ani-Moopa/moopa-resolver/internal/extractor"
	"github.com/Ani-Moopa/moopa-resolver/internal/models"
	"github.com/Ani-Moopa/moopa-resolver/internal/scraper"
	"github.com/Ani-Moopa/moopa-resolver/internal/util"
)

// RespondWithJSON writes a JSON response with the given status code and payload
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		RespondWithError(w, http.StatusInternalServerError, "Failed to marshal response")
		return
	}
	writeRaw(w, code, response)
}

// RespondWithError writes a standardized JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithErr maps an error kind to its status code
func respondWithErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		util.Error("Request failed", "status", code, "error", err)
	}
	RespondWithError(w, code, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, scraper.ErrUnknownProvider), errors.Is(err, models.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, scraper.ErrServerNotFound), errors.Is(err, anilist.ErrMediaNotFound):
		return http.StatusNotFound
	case errors.Is(err, extractor.ErrPlaybackFailed), errors.Is(err, extractor.ErrNoStream), errors.Is(err, scraper.ErrNoEmbed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
