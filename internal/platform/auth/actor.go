package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNoActor = errors.New("no authenticated user in context")

// Actor is the authenticated caller as seen by domain services.
type Actor struct {
	UserID    uuid.UUID
	Role      string
	ProfileID uuid.UUID
}

// ActorFromContext builds an Actor from the identity JWTMiddleware stored.
// Admin tokens may carry no profile id.
func ActorFromContext(ctx context.Context) (Actor, error) {
	uid, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return Actor{}, ErrNoActor
	}
	a := Actor{UserID: uid, Role: RoleFromContext(ctx)}
	if a.Role == "" {
		return Actor{}, ErrNoActor
	}
	if pid := ProfileIDFromContext(ctx); pid != "" {
		a.ProfileID, err = uuid.Parse(pid)
		if err != nil {
			return Actor{}, ErrNoActor
		}
	}
	return a, nil
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsDoctor() bool  { return a.Role == RoleDoctor }
func (a Actor) IsPatient() bool { return a.Role == RolePatient }
