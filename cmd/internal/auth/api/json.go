package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/grebenindmitry/babilado-backend/cmd/internal/apperr"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

// writeAppError renders an apperr-classified error. Internal causes are
// never exposed.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	msg := kind.Error()

	var oe *apperr.OpError
	if kind != apperr.ErrInternal && errors.As(err, &oe) && oe.Msg != "" {
		msg = oe.Msg
	}
	writeError(w, apperr.Status(err), kind.Error(), msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	body := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure there is no extra data after the first JSON value.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
