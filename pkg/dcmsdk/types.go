package dcmsdk

import "encoding/json"

// Response is the result envelope of every channel.
type Response struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	User      *UserSummary    `json:"user,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	Directory string          `json:"directory,omitempty"`
}

// UserSummary is what a successful login returns. The password hash never
// leaves the service.
type UserSummary struct {
	Username     string `json:"username"`
	SerialNumber string `json:"serialNumber"`
	LastUsedMode string `json:"lastUsedMode"`
}

// HealthResponse is returned by /livez and /readyz. Checks is only set by
// /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the store and the auxiliary process.
type HealthChecks struct {
	Store string `json:"store"`
	Aux   string `json:"aux"`
}
