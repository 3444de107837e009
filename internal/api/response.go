package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/solenko/tutord/internal/domain"
)

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeDomainError maps a coded error onto the standard error body, using
// the taxonomy code as the error type.
func writeDomainError(w http.ResponseWriter, err error) {
	httpError(w, domain.HTTPStatus(err), domain.Code(err), "%s", err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
