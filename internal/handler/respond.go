package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/caregrid/sentinel/internal/domain"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondJSON marshals data and writes it with the given status. Encoding
// happens before the header is committed, so a marshal failure can still
// surface as a 500.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	buf, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"code":"INTERNAL_ERROR","message":"response encoding failed"}`))
		return
	}
	w.WriteHeader(status)
	w.Write(buf)
}

// RespondError maps a domain.AppError (possibly wrapped) to its status and
// code; anything else becomes an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		RespondJSON(w, appErr.Status, errorBody{Code: appErr.Code, Message: appErr.Message})
		return
	}
	RespondJSON(w, http.StatusInternalServerError, errorBody{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	})
}

// DecodeJSON decodes exactly one JSON document from the request body;
// trailing content after the document is rejected.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON document")
	}
	return nil
}
