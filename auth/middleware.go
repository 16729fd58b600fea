package auth

import (
	"context"
	"errors"
	"strings"

	"frontpage/models"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"
)

// localsUser is the fiber locals key the authenticated user is stored under.
const localsUser = "frontpage_user"

// Provisioner persists the identity behind a verified token.
type Provisioner interface {
	SaveUser(ctx context.Context, profile models.Profile, admin bool) (models.User, error)
}

// Authenticator turns bearer tokens into stored users on each request.
type Authenticator struct {
	// Secret verifies the HS256 signature.
	Secret []byte
	// Users persists accounts; an unseen email is provisioned on the spot.
	Users Provisioner
	// IsAdmin decides the admin flag for an email. It runs on every request,
	// so a config change takes effect without a new login.
	IsAdmin func(email string) bool
}

// Required rejects requests without a valid token.
func (a *Authenticator) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := a.authenticate(c)
		if err != nil {
			return fail(c, err)
		}
		if user == nil {
			return unauthorized(c)
		}

		c.Locals(localsUser, *user)
		return c.Next()
	}
}

// Optional lets anonymous requests through, but a request that presents a
// broken token is still rejected.
func (a *Authenticator) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := a.authenticate(c)
		if err != nil {
			return fail(c, err)
		}
		if user != nil {
			c.Locals(localsUser, *user)
		}

		return c.Next()
	}
}

// RequireAdmin gates a route to admin accounts. Chain it after Required.
func (a *Authenticator) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := UserFrom(c)
		if !ok {
			return unauthorized(c)
		}
		if !user.Admin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin_only"})
		}

		return c.Next()
	}
}

// UserFrom returns the user the middleware stored for this request.
func UserFrom(c *fiber.Ctx) (models.User, bool) {
	user, ok := c.Locals(localsUser).(models.User)
	return user, ok
}

// authenticate resolves the request's bearer token into a stored user. A
// missing header yields (nil, nil); a present but unusable token errors.
func (a *Authenticator) authenticate(c *fiber.Ctx) (*models.User, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, nil
	}

	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return nil, ErrInvalidToken
	}

	claims, err := ParseToken(raw, a.Secret)
	if err != nil {
		return nil, err
	}

	user, err := a.Users.SaveUser(c.Context(), claims.Profile(), a.IsAdmin(claims.Email))
	if err != nil {
		log.WithFields(log.Fields{
			"email": claims.Email,
			"error": err,
		}).Error("Error provisioning user")
		return nil, err
	}

	return &user, nil
}

func fail(c *fiber.Ctx, err error) error {
	if errors.Is(err, ErrInvalidToken) {
		return unauthorized(c)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "storage_error"})
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "auth_required"})
}
