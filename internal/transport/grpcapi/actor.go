package grpcapi

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/tour-marketplace/internal/model"
	"github.com/Leganyst/tour-marketplace/internal/service"
)

// Личность вызывающего выставляет доверенный шлюз перед ядром.
const (
	mdActorKind = "x-actor-kind"
	mdActorID   = "x-actor-id"
)

// WithActor добавляет в исходящий контекст клиента заголовки актора.
func WithActor(ctx context.Context, actor service.Actor) context.Context {
	pairs := []string{mdActorKind, string(actor.Kind)}
	if actor.ID != uuid.Nil {
		pairs = append(pairs, mdActorID, actor.ID.String())
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

func actorFromContext(ctx context.Context) (service.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return service.Actor{}, status.Error(codes.Unauthenticated, "actor metadata is missing")
	}
	kind := model.ActorKind(strings.ToUpper(first(md, mdActorKind)))
	switch kind {
	case model.ActorTraveler, model.ActorGuide, model.ActorAdmin, model.ActorSystem:
	case "":
		return service.Actor{}, status.Error(codes.Unauthenticated, "actor kind is missing")
	default:
		return service.Actor{}, status.Errorf(codes.Unauthenticated, "unknown actor kind %q", kind)
	}

	actor := service.Actor{Kind: kind}
	if raw := first(md, mdActorID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return service.Actor{}, status.Error(codes.Unauthenticated, "actor id is not a uuid")
		}
		actor.ID = id
	}
	if actor.ID == uuid.Nil && (kind == model.ActorTraveler || kind == model.ActorGuide) {
		return service.Actor{}, status.Errorf(codes.Unauthenticated, "%s requires actor id", kind)
	}
	return actor, nil
}

// requireActor читает актора и проверяет, что его роль допустима для метода.
func requireActor(ctx context.Context, allowed ...model.ActorKind) (service.Actor, error) {
	actor, err := actorFromContext(ctx)
	if err != nil {
		return service.Actor{}, err
	}
	if !slices.Contains(allowed, actor.Kind) {
		return service.Actor{}, status.Errorf(codes.PermissionDenied, "%s may not call this method", actor.Kind)
	}
	return actor, nil
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}
