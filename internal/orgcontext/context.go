// Package orgcontext threads the request's organization and actor through context.
package orgcontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type contextKey string

const (
	orgIDKey     contextKey = "org_id"
	actorIDKey   contextKey = "actor_id"
	actorRoleKey contextKey = "actor_role"
	requestIDKey contextKey = "request_id"
)

func WithOrgID(ctx context.Context, orgID snowflake.ID) context.Context {
	if orgID == 0 {
		return ctx
	}
	return context.WithValue(ctx, orgIDKey, orgID)
}

func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	value, ok := ctx.Value(orgIDKey).(snowflake.ID)
	return value, ok && value != 0
}

func WithActor(ctx context.Context, actorID snowflake.ID, role string) context.Context {
	if actorID != 0 {
		ctx = context.WithValue(ctx, actorIDKey, actorID)
	}
	if role != "" {
		ctx = context.WithValue(ctx, actorRoleKey, role)
	}
	return ctx
}

func ActorFromContext(ctx context.Context) (snowflake.ID, string) {
	actorID, _ := ctx.Value(actorIDKey).(snowflake.ID)
	role, _ := ctx.Value(actorRoleKey).(string)
	return actorID, role
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}
