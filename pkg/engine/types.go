package engine

import (
	"strings"
	"time"
)

// Context is the read-only input to a single execution call: the tenant and
// request identity, the caller-supplied attribute bag, and the results of
// dependency atoms executed earlier in the same call, keyed by atom code.
// A Context is created per execution and discarded afterwards.
type Context struct {
	// TenantID scopes atom resolution and cache keys.
	TenantID string

	// RequestID correlates log lines and traces for one call.
	RequestID string

	// Attributes is the caller-provided input (user/device/location/
	// behavior/consent maps). Never mutated by the engine.
	Attributes map[string]interface{}

	// DependencyResults holds results of dependency atoms executed for
	// this call, keyed by atom code.
	DependencyResults map[string]*Result
}

// Lookup resolves a condition field against the context. Dependency results
// shadow nothing: attributes are consulted first, then dependency values by
// atom code. Dot notation descends into nested map attributes
// (e.g. "device.os.version").
func (c *Context) Lookup(field string) (interface{}, bool) {
	if value, ok := lookupPath(c.Attributes, field); ok {
		return value, true
	}
	if res, ok := c.DependencyResults[field]; ok {
		return res.Value, true
	}
	return nil, false
}

// lookupPath descends into nested maps following dot-separated segments.
func lookupPath(attrs map[string]interface{}, field string) (interface{}, bool) {
	if attrs == nil {
		return nil, false
	}
	if value, ok := attrs[field]; ok {
		return value, true
	}

	parts := strings.Split(field, ".")
	if len(parts) < 2 {
		return nil, false
	}

	var current interface{} = attrs
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Result is the immutable outcome of one atom execution.
type Result struct {
	// Eligible is the admit/deny decision.
	Eligible bool `json:"eligible"`

	// Value is the derived value: a boolean for condition atoms, a score
	// for model-backed atoms, or structured model output.
	Value interface{} `json:"value"`

	// Reason is a human-readable explanation of the decision.
	Reason string `json:"reason"`

	// ExecutionTimeMs is the wall time the execution took.
	ExecutionTimeMs int64 `json:"execution_time_ms"`

	// CacheHit indicates the result was served from the cache; no
	// dependency execution or evaluation happened.
	CacheHit bool `json:"cache_hit"`

	// Err carries the execution failure, if any. Failed results are never
	// cached.
	Err error `json:"-"`
}

// resultTimer stamps a result with elapsed wall time.
type resultTimer struct {
	start time.Time
}

func startTimer() resultTimer {
	return resultTimer{start: time.Now()}
}

func (t resultTimer) elapsed() time.Duration {
	return time.Since(t.start)
}

func (t resultTimer) elapsedMs() int64 {
	return time.Since(t.start).Milliseconds()
}
