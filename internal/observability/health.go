package observability

import (
	"sync/atomic"
)

// HealthChecker tracks readiness. The shell flips it once recovery and
// replay finish; the HTTP server's /readyz consults it alongside its own
// dependency checks.
type HealthChecker struct {
	ready atomic.Bool
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{}
}

// SetReady marks the service as ready to accept traffic.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady returns whether the service is ready.
func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}
