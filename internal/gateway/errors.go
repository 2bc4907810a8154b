package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BibekSapkota1/Share-Project/internal/logger"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

var statusByCode = map[model.ErrorCode]int{
	model.CodeNoData:              http.StatusNotFound,
	model.CodeInsufficientHistory: http.StatusUnprocessableEntity,
	model.CodeCycleAlreadyOpen:    http.StatusConflict,
	model.CodeNoOpenCycle:         http.StatusConflict,
	model.CodeIneligibleSymbol:    http.StatusUnprocessableEntity,
	model.CodeMissingSellReason:   http.StatusUnprocessableEntity,
	model.CodeInvalidRequest:      http.StatusBadRequest,
	model.CodeInvalidDate:         http.StatusBadRequest,
	model.CodeInvalidSettings:     http.StatusBadRequest,
	model.CodeMalformedData:       http.StatusUnprocessableEntity,
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status code. Coded errors carry their message to
// the caller; anything else is logged and reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var me *model.Error
	if errors.As(err, &me) {
		status, ok := statusByCode[me.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorBody{Error: me.Error(), Code: string(me.Code)})
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusGatewayTimeout, errorBody{Error: "request timed out", Code: "TIMEOUT"})
		return
	}
	slog.Error("request failed", logger.Attrs(r.Context(), "path", r.URL.Path, "err", err)...)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"})
}
