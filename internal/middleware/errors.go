package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

// writeError writes the API error envelope {"error":{"code","message"}}.
// The api package has its own writer; middleware can't import it without a cycle.
func writeError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	SetErrorCode(ctx, code)

	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
