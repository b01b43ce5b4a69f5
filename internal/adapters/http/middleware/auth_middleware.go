package middleware

import (
	"context"
	"strings"

	"loanbook/internal/core/domain"
	"loanbook/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ActorResolver turns an access token into the authenticated actor
type ActorResolver interface {
	ResolveActor(ctx context.Context, accessToken string) (*domain.Actor, error)
}

const actorKey = "actor"

// AuthMiddleware creates authentication middleware. The actor is reloaded from
// storage on every request so deactivation and grant changes apply at once.
func AuthMiddleware(resolver ActorResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := bearerToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		actor, err := resolver.ResolveActor(c.UserContext(), accessToken)
		if err != nil {
			return response.FromError(c, err)
		}

		c.Locals(actorKey, actor)
		c.Locals("userID", actor.ID)
		c.Locals("role", string(actor.Role))

		return c.Next()
	}
}

// bearerToken reads the access token from the cookie first, then the
// Authorization header
func bearerToken(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Actor returns the actor set by AuthMiddleware, or nil
func Actor(c *fiber.Ctx) *domain.Actor {
	actor, _ := c.Locals(actorKey).(*domain.Actor)
	return actor
}

// WithActor stores actor on the request; handler tests use it instead of a token
func WithActor(actor *domain.Actor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if actor != nil {
			c.Locals(actorKey, actor)
			c.Locals("userID", actor.ID)
			c.Locals("role", string(actor.Role))
		}
		return c.Next()
	}
}

// RoleMiddleware creates role-based authorization middleware. It only trims
// obviously wrong callers; the permission gate in the services decides.
func RoleMiddleware(allowedRoles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := Actor(c)
		if actor == nil {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if actor.Role == allowedRole {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only ADMIN role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleAdmin)
}

// StaffOnly middleware allows ADMIN, MANAGER and AGENT
func StaffOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleAdmin, domain.RoleManager, domain.RoleAgent)
}
