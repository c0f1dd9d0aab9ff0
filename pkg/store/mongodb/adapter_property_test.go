package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: Close prevents subsequent operations
func TestProperty_ClosePreventsPing(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 20
	properties := gopter.NewProperties(params)

	properties.Property("closed adapter always fails ping", prop.ForAll(
		func() bool {
			a := &Adapter{closed: true}
			return a.Ping(context.Background()) != nil
		},
	))

	properties.TestingRun(t)
}

// Property: the operation deadline never exceeds the configured timeout.
func TestProperty_OperationTimeoutBounded(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	properties := gopter.NewProperties(params)

	properties.Property("deadline within timeout", prop.ForAll(
		func(ms int) bool {
			timeout := time.Duration(ms) * time.Millisecond
			a := &Adapter{timeout: timeout}
			ctx, cancel := a.withOperationTimeout(context.Background())
			defer cancel()
			deadline, ok := ctx.Deadline()
			return ok && time.Until(deadline) <= timeout
		},
		gen.IntRange(1, 10000),
	))

	properties.TestingRun(t)
}
