package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/store"
	"github.com/aussiebroadwan/dcm/internal/dcm/supervisor"
	"github.com/aussiebroadwan/dcm/pkg/dcmsdk"
	"github.com/aussiebroadwan/dcm/pkg/httpx"
	"github.com/aussiebroadwan/dcm/pkg/slogx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness endpoint returning service health status and checks for critical dependencies
//	@Description	An unreachable store answers 503. A missing or dead auxiliary process only marks the service degraded,
//	@Description	since every channel keeps working without it.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	dcmsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	dcmsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	aux AuxStatus,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &dcmsdk.HealthChecks{
			Store: "ok",
			Aux:   string(supervisor.StateDisabled),
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		// Check store reachability; the cause goes to the log only
		if err := st.Ping(r.Context()); err != nil {
			slogx.FromContext(r.Context()).Error("readiness: store ping failed", "error", err)
			checks.Store = "error"
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if aux != nil {
			state := aux.Status().State
			checks.Aux = string(state)
			if state == supervisor.StateDegraded || state == supervisor.StateExited {
				overallStatus = "degraded"
			}
		}

		response := dcmsdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
