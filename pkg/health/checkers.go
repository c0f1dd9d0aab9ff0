package health

import (
	"context"
	"time"

	"github.com/nimburion/docroute/pkg/store"
)

// DefaultTimeout bounds a single check when none is configured.
const DefaultTimeout = 5 * time.Second

// Checkable is implemented by components that support health checks.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker reports the health of any Checkable component.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a checker for adapter. A zero timeout uses
// DefaultTimeout.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

// Check performs the health check on the adapter
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.adapter.HealthCheck(checkCtx); err != nil {
		return CheckResult{
			Name:      c.name,
			Status:    StatusUnhealthy,
			Error:     err.Error(),
			Timestamp: time.Now(),
			Duration:  time.Since(start),
		}
	}
	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
}

// Name returns the name of the health check
func (c *AdapterChecker) Name() string {
	return c.name
}

// StoreChecker checks a document store client and, when a database is
// given, lists its collections. A reachable store whose listing fails is
// degraded rather than unhealthy.
type StoreChecker struct {
	*AdapterChecker
	client   store.Client
	database string
}

// NewStoreChecker creates a checker for client. database may be empty when
// no default database is configured.
func NewStoreChecker(name string, client store.Client, database string, timeout time.Duration) *StoreChecker {
	return &StoreChecker{
		AdapterChecker: NewAdapterChecker(name, client, timeout),
		client:         client,
		database:       database,
	}
}

// Check pings the store and reports the collection count of the database.
func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	result := c.AdapterChecker.Check(ctx)
	if result.Status != StatusHealthy || c.database == "" {
		return result
	}

	listCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	names, err := c.client.ListCollectionNames(listCtx, c.database)
	result.Metadata = map[string]interface{}{"database": c.database}
	if err != nil {
		result.Status = StatusDegraded
		result.Message = "store reachable but collections could not be listed"
		result.Error = err.Error()
		return result
	}
	result.Metadata["collections"] = len(names)
	return result
}
