package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/developer-yasir/support-panel/internal/domain"
	apperrors "github.com/developer-yasir/support-panel/pkg/util"
)

// RequireSubject ensures the principal is one of the allowed subject types.
// Dashboards read; agents read and write.
func RequireSubject(allowed ...domain.SubjectType) fiber.Handler {
	allowedSet := make(map[domain.SubjectType]struct{}, len(allowed))
	for _, s := range allowed {
		allowedSet[s] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if _, exists := allowedSet[principal.SubjectType]; !exists {
			return apperrors.NewForbidden("insufficient subject type")
		}
		return c.Next()
	}
}
