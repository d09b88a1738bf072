package http

import (
	"encoding/json"
	"net/http"

	"casework/pkg/results"
)

type errorBody struct {
	Message     string            `json:"message,omitempty"`
	EntityType  string            `json:"entityType,omitempty"`
	EntityID    string            `json:"entityId,omitempty"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// writeResult maps the closed set of outcome variants to the HTTP surface.
// The fault channel never reaches here; handlers turn it into a 500 first.
func writeResult[T any](w http.ResponseWriter, res results.Result[T], status int, body func(T) any) {
	switch res.Kind() {
	case results.KindSuccess:
		var payload any
		if body != nil {
			payload = body(res.Value())
		}
		writeJSON(w, status, payload)
	case results.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{
			EntityType: res.EntityType(),
			EntityID:   res.EntityID(),
		})
	case results.KindUnauthorised:
		writeJSON(w, http.StatusForbidden, nil)
	case results.KindGeneralValidationError:
		writeJSON(w, http.StatusBadRequest, errorBody{Message: res.Message()})
	case results.KindFieldValidationError:
		writeJSON(w, http.StatusBadRequest, errorBody{FieldErrors: res.FieldErrors()})
	default:
		writeJSON(w, http.StatusInternalServerError, nil)
	}
}
