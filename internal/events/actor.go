package events

import "context"

// SystemActor is recorded when a command arrives without an authenticated
// principal (internal jobs, migrations).
const SystemActor = "system"

type actorKey struct{}

type correlationKey struct{}

// WithActor stores the issuing principal's identity in the context. The
// command handler reads it at event creation time; there is no ambient
// fallback beyond SystemActor.
func WithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the principal stored by WithActor, or SystemActor.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return SystemActor
	}
	if v, ok := ctx.Value(actorKey{}).(string); ok && v != "" {
		return v
	}
	return SystemActor
}

// WithCorrelationID tags the context with the request-scoped correlation id
// copied onto outbound envelopes.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the correlation id, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationKey{}).(string); ok {
		return v
	}
	return ""
}
