package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lines-of-codes/litestore"
)

// DefaultMaxBodyBytes limits JSON request bodies when HandlerConfig leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json field names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the response matching the sentinel err wraps.
// Unknown errors become 500 without exposing details.
func HandleError(w http.ResponseWriter, err error) {
	var denied *litestore.DeniedError

	switch {
	case errors.As(err, &denied):
		slog.Debug("request denied", "error", err)
		WriteError(w, http.StatusForbidden, denied.Reason, "Link cannot be redeemed")
	case errors.Is(err, litestore.ErrNotFound):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, litestore.ErrConflict):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, litestore.ErrForbidden):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusForbidden, "forbidden", "Forbidden")
	case errors.Is(err, litestore.ErrUnauthorized):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
	case errors.Is(err, litestore.ErrInvalidInput):
		slog.Debug("request error", "error", err)
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a JSON body of at most limit bytes into dst and validates
// it. An empty body is accepted when optional is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: request body exceeds %d bytes", litestore.ErrInvalidInput, tooLarge.Limit)
		}
		return fmt.Errorf("%w: malformed JSON body: %w", litestore.ErrInvalidInput, err)
	}

	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", litestore.ErrInvalidInput, validationMessage(err))
	}

	return nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}

	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		} else {
			msgs[i] = fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}
