package partition

import (
	"context"
	"strings"
)

type contextKey struct{}

// WithName returns a copy of ctx bound to the named partition. It performs
// no validation; use Manager.Bind at unit-of-work boundaries.
func WithName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, contextKey{}, name)
}

// FromContext returns the partition bound to ctx.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	name, ok := ctx.Value(contextKey{}).(string)
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}

func formatDatabaseName(format, prefix, partition string) string {
	return strings.NewReplacer(
		"{prefix}", prefix,
		"{0}", prefix,
		"{partition}", partition,
		"{1}", partition,
	).Replace(format)
}

func formatCollectionName(format, base, partition string) string {
	return strings.NewReplacer(
		"{base}", base,
		"{0}", base,
		"{partition}", partition,
		"{1}", partition,
	).Replace(format)
}
