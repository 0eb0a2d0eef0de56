package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxCodeLength       int
	MaxUploadSize       int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxCodeLength == 0 {
		cfg.MaxCodeLength = 100_000
	}
	if cfg.MaxUploadSize == 0 {
		cfg.MaxUploadSize = 50 * 1024 * 1024
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{
			"application/json",
			"multipart/form-data",
			"application/x-www-form-urlencoded",
		}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
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
						"detail": "Unsupported content type",
					})
				}
			}
		}

		path := c.Path()

		if c.Method() == "POST" && strings.Contains(path, "/execute") {
			var req struct {
				Code string `json:"code"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"detail": "Invalid request body",
				})
			}

			if len(req.Code) > cfg.MaxCodeLength {
				cfg.Logger.Warn("Rejected oversized code payload",
					zap.String("ip", c.IP()),
					zap.Int("code_length", len(req.Code)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"detail": "Code exceeds maximum length",
				})
			}
		}

		if c.Method() == "POST" && strings.HasSuffix(path, "/sessions") {
			if len(c.Body()) > cfg.MaxUploadSize {
				cfg.Logger.Warn("Rejected oversized upload",
					zap.String("ip", c.IP()),
					zap.Int("body_size", len(c.Body())),
				)
				return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
					"detail": "Uploaded file exceeds maximum size",
				})
			}
		}

		return c.Next()
	}
}
