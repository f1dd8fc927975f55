package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/aussiebroadwan/dcm/internal/dcm/ipc"
	"github.com/aussiebroadwan/dcm/pkg/httpx"
	"github.com/aussiebroadwan/dcm/pkg/slogx"
)

// maxIPCBody bounds a channel request. The largest legitimate body is a
// set-user call with one settings block.
const maxIPCBody = 64 << 10

type IPCHandler struct {
	Boundary *ipc.Boundary
}

// ServeHTTP invokes one channel
//
//	@Summary		Invoke a channel
//	@Description	Runs the named channel with positional arguments, exactly as the UI's invoke(channel, ...args).
//	@Description	Channel failures (unknown user, wrong password, full store, ...) are reported with success=false and HTTP 200.
//	@Tags			IPC
//	@Accept			json
//	@Produce		json
//	@Param			channel	path		string					true	"Channel name"	Enums(register-user, set-user, login-user, get-settings-for-mode, download-parameter-log, download-login-history)
//	@Param			args	body		[]object				false	"Positional arguments"
//	@Success		200		{object}	ipc.Response			"Channel result"
//	@Failure		400		{object}	httpx.ErrorResponse		"Body is not a JSON array"
//	@Failure		413		{object}	httpx.ErrorResponse		"Body too large"
//	@Failure		429		{object}	httpx.ErrorResponse		"Rate limit exceeded"
//	@Router			/v1/ipc/{channel} [post].
func (h *IPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIPCBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, http.StatusRequestEntityTooLarge, "invalid_request", "Request body too large")
			return
		}
		log.Warn("failed to read ipc body", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}

	// An empty body is a call without arguments.
	var args []json.RawMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Body must be a JSON array of arguments")
			return
		}
	}

	res := h.Boundary.Invoke(r.Context(), ipc.Channel(r.PathValue("channel")), args)
	httpx.WriteJSON(w, http.StatusOK, res)
}
