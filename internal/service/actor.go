package service

import (
	"context"

	"github.com/paperplay/sticker-service/internal/domain"
	"github.com/paperplay/sticker-service/internal/events"
)

type actorKey struct{}

// WithOperator marks ctx as acting on behalf of an authenticated operator.
func WithOperator(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, actorKey{}, events.Actor{Type: domain.SubjectTypeOperator, Subject: subject})
}

func actorFrom(ctx context.Context) events.Actor {
	if actor, ok := ctx.Value(actorKey{}).(events.Actor); ok {
		return actor
	}
	return events.Actor{}
}
