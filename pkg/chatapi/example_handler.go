package chatapi

import (
	"encoding/json"
	"net/http"
)

type exampleResponse struct {
	Message string `json:"message"`
}

var exampleMessages = map[string]string{
	http.MethodGet:    "API Running with GET",
	http.MethodPost:   "API Running with POST",
	http.MethodPut:    "API Running with PUT",
	http.MethodDelete: "Delete request received",
}

// NewExampleHandler answers GET, POST, PUT and DELETE with a fixed JSON message.
// Request bodies are ignored.
func NewExampleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		msg, ok := exampleMessages[req.Method]
		if !ok {
			w.Header().Set("Allow", "GET, POST, PUT, DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(exampleResponse{Message: msg})
	}
}
