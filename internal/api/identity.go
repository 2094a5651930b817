package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hackgods/turnos-scheduling/internal/appointment"
)

const (
	HeaderActorRole = "X-Actor-Role"
	HeaderActorRef  = "X-Actor-Ref"
)

const actorKey contextKey = "actor"

var errMissingIdentity = errors.New("missing caller identity")

const unauthenticatedReason = "missing or invalid credentials"

// IdentityResolver turns an already-authenticated request into an Actor.
type IdentityResolver func(r *http.Request) (appointment.Actor, error)

// HeaderIdentity trusts the role and reference set by an upstream gateway.
func HeaderIdentity(r *http.Request) (appointment.Actor, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderActorRole))
	if raw == "" {
		return appointment.Actor{}, errMissingIdentity
	}
	role, err := appointment.ParseRole(strings.ToLower(raw))
	if err != nil {
		return appointment.Actor{}, err
	}
	return appointment.Actor{Role: role, Ref: strings.TrimSpace(r.Header.Get(HeaderActorRef))}, nil
}

// ActorClaims are the bearer token claims: role plus the standard subject,
// which carries the patient or physician reference.
type ActorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIdentity verifies HS256 bearer tokens signed with secret.
func JWTIdentity(secret []byte) IdentityResolver {
	return func(r *http.Request) (appointment.Actor, error) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			return appointment.Actor{}, errMissingIdentity
		}

		claims := &ActorClaims{}
		_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			return appointment.Actor{}, fmt.Errorf("invalid bearer token: %w", err)
		}

		role, err := appointment.ParseRole(claims.Role)
		if err != nil {
			return appointment.Actor{}, err
		}
		return appointment.Actor{Role: role, Ref: claims.Subject}, nil
	}
}

// IdentityMiddleware rejects requests without a usable identity with 401.
// The cause is logged, never returned to the caller.
func IdentityMiddleware(resolve IdentityResolver, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := resolve(r)
			if err != nil {
				log.Info("identity rejected",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "unauthenticated", unauthenticatedReason)
				return
			}
			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func actorFrom(ctx context.Context) appointment.Actor {
	actor, _ := ctx.Value(actorKey).(appointment.Actor)
	return actor
}
