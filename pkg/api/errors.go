package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nfvpack/nfvpack/pkg/util"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Warnf("Encoding response: %v", err)
	}
}

// writeError maps an error onto a status by its sentinel.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error()}

	var verr *util.ValidationError
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, util.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, util.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, util.ErrInvalidPackage), errors.Is(err, util.ErrUnsupportedVersion):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		body.Details = verr.Errors
	}
	if status == http.StatusInternalServerError {
		util.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, body)
}
