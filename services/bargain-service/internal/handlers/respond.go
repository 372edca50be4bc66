package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"farmart-bargain/services/bargain-service/internal/domain"
	"farmart-bargain/services/bargain-service/internal/middleware"
)

// maxBodyBytes caps request bodies; the largest legitimate body is a chat
// message.
const maxBodyBytes = 64 << 10

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Min   string `json:"min,omitempty"`
	Max   string `json:"max,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var oor *domain.OfferOutOfRangeError
	if errors.As(err, &oor) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error: err.Error(),
			Code:  "OFFER_OUT_OF_RANGE",
			Min:   oor.Min.StringFixed(2),
			Max:   oor.Max.StringFixed(2),
		})
		return
	}

	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrInvalidState):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, domain.ErrSessionTerminal):
		status, code = http.StatusConflict, "SESSION_TERMINAL"
	case errors.Is(err, domain.ErrConcurrentModification):
		status, code = http.StatusConflict, "CONCURRENT_MODIFICATION"
	case errors.Is(err, domain.ErrListingUnavailable):
		status, code = http.StatusConflict, "LISTING_UNAVAILABLE"
	case errors.Is(err, domain.ErrSessionNotFound):
		status, code = http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, domain.ErrOrderNotFound):
		status, code = http.StatusNotFound, "ORDER_NOT_FOUND"
	case errors.Is(err, domain.ErrListingNotFound):
		status, code = http.StatusNotFound, "LISTING_NOT_FOUND"
	case errors.Is(err, domain.ErrForbidden):
		status, code = http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
	}
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		writeJSON(w, status, errorBody{Error: "internal error", Code: code})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched
// when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func caller(r *http.Request) (string, error) {
	id, ok := middleware.UserID(r.Context())
	if !ok {
		return "", domain.ErrForbidden
	}
	return id, nil
}

// ifMatch parses an optional If-Match header carrying a session version.
func ifMatch(r *http.Request) (int, error) {
	h := strings.TrimSpace(r.Header.Get("If-Match"))
	if h == "" || h == "*" {
		return 0, nil
	}
	h = strings.TrimPrefix(h, "W/")
	v, err := strconv.Atoi(strings.Trim(h, `"`))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: If-Match must be a session version", domain.ErrInvalidInput)
	}
	return v, nil
}

func etag(version int) string {
	return `"` + strconv.Itoa(version) + `"`
}

func errInvalid(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
}
