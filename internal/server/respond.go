package server

import (
	"net/http"

	"github.com/bytedance/sonic"

	"mindgate/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := sonic.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":{"message":"failed to encode response","type":"internal_error","code":"internal_error"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError maps err onto its status code and the OpenAI error object
func writeError(w http.ResponseWriter, err error) {
	gwErr := core.AsGatewayError(err)
	writeJSON(w, gwErr.HTTPStatusCode(), gwErr.ToJSON())
}

func errorBody(message, code string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    code,
			"code":    code,
		},
	}
}
