package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/and161185/simplidoc/internal/api"
	"github.com/and161185/simplidoc/internal/errs"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorBody(code errs.Code, msg string) api.ErrorBody {
	return api.ErrorBody{Message: msg, Error: code}
}

// decode reads a JSON body into dst. An empty body leaves dst zero-valued.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.Wrap(errs.CodeInvalidBody, "Invalid request body", err)
	}
	return nil
}

// asError converts any error to a domain error; unknown errors become SERVER_ERROR.
func asError(err error) *errs.Error {
	var e *errs.Error
	if errors.As(err, &e) {
		return e
	}
	return errs.Wrap(errs.CodeServerError, "Server error", err)
}
