package validation

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/contentpulse/backend/pkg/logger"
)

// Report ids are uuids; anything else in the path segment is rejected before
// it reaches a handler or a SQL statement.
var reportIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

type Config struct {
	MaxUploadSize       int
	AllowedContentTypes []string
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 25 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}

			if length := c.Request().Header.ContentLength(); length > cfg.MaxUploadSize {
				logger.Warn("Upload rejected for size",
					zap.Int("content_length", length),
					zap.String("ip", c.IP()),
				)
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"error": "Upload exceeds maximum size",
				})
			}
		}

		if id := reportIDSegment(c.Path()); id != "" && !reportIDPattern.MatchString(id) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid report id",
			})
		}

		return c.Next()
	}
}

// reportIDSegment extracts the id segment from /api/v1/reports/<id>[/...].
// Empty when the path is not report-scoped.
func reportIDSegment(path string) string {
	const prefix = "/api/v1/reports/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(path, prefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
