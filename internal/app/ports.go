package service

import (
	"context"

	"github.com/okian/tipster/internal/domain/model"
)

// ActorSource lists the actors to profile in a cycle.
type ActorSource interface {
	ListActors(ctx context.Context) ([]string, error)
}

// HistorySource fetches one actor's settled wagers. An unknown actor has
// an empty history, not an error.
type HistorySource interface {
	FetchHistory(ctx context.Context, actorID string) ([]model.WagerRecord, error)
}

// StaticActors is an ActorSource over a fixed list.
type StaticActors []string

// ListActors implements ActorSource.
func (s StaticActors) ListActors(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

type emptyHistory struct{}

func (emptyHistory) FetchHistory(context.Context, string) ([]model.WagerRecord, error) {
	return nil, nil
}
