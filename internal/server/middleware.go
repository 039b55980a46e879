package server

import (
	"context"
	"net/http"
	"strings"

	"tallybook/internal/ports"
)

type actorKey struct{}
type engineKey struct{}

// withActor extracts the acting identity from headers. The audit trail never
// carries an empty actor: callers without headers act as the system identity
// (engine-qualified on engine routes).
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ports.Actor{
			ID:   strings.TrimSpace(r.Header.Get("X-Actor-Id")),
			Type: strings.TrimSpace(r.Header.Get("X-Actor-Type")),
		}
		if roles := strings.TrimSpace(r.Header.Get("X-Actor-Roles")); roles != "" {
			for _, role := range strings.Split(roles, ",") {
				if role = strings.TrimSpace(role); role != "" {
					actor.Roles = append(actor.Roles, role)
				}
			}
		}
		if actor.ID == "" {
			actor = ports.Actor{
				ID:    ports.SystemActor(engineFrom(r.Context())).ID,
				Type:  "system",
				Roles: actor.Roles,
			}
		}
		if actor.Type == "" {
			actor.Type = "user"
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) ports.Actor {
	if actor, ok := ctx.Value(actorKey{}).(ports.Actor); ok {
		return actor
	}
	return ports.SystemActor("")
}

// engineGate rechecks the kill switch on every call under an engine subtree,
// before any read or write, so a runtime toggle needs no restart.
func (s *Server) engineGate(engineID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := s.registry.RequireEnabled(engineID); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), engineKey{}, engineID)))
		})
	}
}

func engineFrom(ctx context.Context) string {
	if engineID, ok := ctx.Value(engineKey{}).(string); ok {
		return engineID
	}
	return ""
}
