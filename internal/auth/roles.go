package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/paperplay/sticker-service/internal/domain"
	apperrors "github.com/paperplay/sticker-service/pkg/util/errorutil"
)

// RequireOperator ensures an OPERATOR token was presented.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if principal.SubjectType != domain.SubjectTypeOperator || principal.Operator == nil {
			return apperrors.NewForbidden("operator required")
		}
		return c.Next()
	}
}
