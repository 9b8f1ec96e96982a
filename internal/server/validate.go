package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Contact  string `json:"contact" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type newMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// validated decodes the request body into T exactly once, runs struct-tag
// validation, and passes the typed value to the handler through the context.
// The handler must never re-read the body; bodyFrom hands it the decoded value.
func validated[T any](v *validator.Validate, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Can not read request body")
			return
		}

		var req T
		if err := json.Unmarshal(body, &req); err != nil {
			writeMessage(w, http.StatusBadRequest, "Malformed JSON")
			return
		}

		if err := v.Struct(req); err != nil {
			writeMessage(w, http.StatusBadRequest, validationSummary(err))
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), validatedKey, &req)))
	})
}

// bodyFrom returns the validated body placed into the context by validated[T].
// Nil means the route was wired without the matching middleware.
func bodyFrom[T any](r *http.Request) *T {
	v, _ := r.Context().Value(validatedKey).(*T)
	return v
}

// validationSummary aggregates every field violation into one human-readable message
func validationSummary(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("field %q failed on the %q rule", fe.Field(), fe.Tag()))
	}

	return strings.Join(parts, "; ")
}
