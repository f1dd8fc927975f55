package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/ipc"
	"github.com/aussiebroadwan/dcm/internal/dcm/metrics"
	"github.com/aussiebroadwan/dcm/internal/dcm/store"
	"github.com/aussiebroadwan/dcm/internal/dcm/supervisor"
	"github.com/aussiebroadwan/dcm/pkg/httpx"
	"github.com/aussiebroadwan/dcm/pkg/slogx"

	_ "github.com/aussiebroadwan/dcm/api/dcm" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// AuxStatus reports the auxiliary process. *supervisor.Process satisfies it.
type AuxStatus interface {
	Status() supervisor.Status
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store      store.Store
	Boundary   *ipc.Boundary
	Aux        AuxStatus        // Optional: readiness reports "disabled" without it
	Metrics    *metrics.Metrics // Optional: /metrics is not mounted without it
	RateLimits httpx.RateLimits // Read by ApplyRoutes
	TrustProxy bool             // Key limits on X-Forwarded-For / X-Real-IP instead of the peer address
}

func NewRouter(
	buildVersion string,
	st store.Store,
	boundary *ipc.Boundary,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		Boundary:     boundary,
		logger:       logger,
		RateLimits:   httpx.DefaultRateLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerIPC()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			DCM Account Service API
//	@version		0.1.0
//	@description	Account and parameter-history backend of the pacemaker device-configuration monitor.
//	@description
//	@description	Every UI channel is a POST to /v1/ipc/{channel} with a JSON array of positional arguments.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/dcm
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle mounts h under pattern with request metrics labelled by pattern.
func (r *Router) handle(pattern string, h http.Handler) {
	r.Mux.Handle(pattern, r.Metrics.InstrumentHandler(pattern, h))
}

func (r *Router) registerIPC() {
	h := &IPCHandler{Boundary: r.Boundary}
	ls := r.RateLimits
	ip := httpx.ClientIP(r.TrustProxy)

	// Limiters are built once so their buckets persist across requests.
	limited := map[ipc.Channel]http.Handler{
		// Strict limit by IP + username (first argument) to slow password guessing
		ipc.ChannelLoginUser: httpx.Chain(h,
			r.limit(httpx.RateLimitByIPAndJSONField("strict", ls.Strict, ip, "0")),
		),
	}
	// Registration and settings writes both hash or rewrite the users file
	writes := r.limit(httpx.RateLimitByIP("moderate", ls.Moderate, ip))
	limited[ipc.ChannelRegisterUser] = httpx.Chain(h, writes)
	limited[ipc.ChannelSetUser] = httpx.Chain(h, writes)

	lenient := httpx.Chain(h, r.limit(httpx.RateLimitByIP("lenient", ls.Lenient, ip)))

	r.handle("POST /v1/ipc/{channel}", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if next, ok := limited[ipc.Channel(req.PathValue("channel"))]; ok {
			next.ServeHTTP(w, req)
			return
		}
		lenient.ServeHTTP(w, req)
	}))
}

func (r *Router) registerSystem() {
	// Health and metrics share one public bucket per client
	public := r.limit(httpx.RateLimitByIP("public", r.RateLimits.Public, httpx.ClientIP(r.TrustProxy)))

	r.handle("GET /livez", httpx.Chain(LivezHandler(r.startTime, r.buildVersion), public))
	r.handle("GET /readyz", httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Aux), public))

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", httpx.Chain(r.Metrics.Handler(), public))
	}
}

// limit counts rejections by profile name.
func (r *Router) limit(l *httpx.Limiter) httpx.Middleware {
	l.OnReject = func(*http.Request) { r.Metrics.RateLimited(l.Name) }
	return l.Middleware()
}
