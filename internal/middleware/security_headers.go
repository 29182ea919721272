package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// SecurityHeadersConfig holds the headers set on every response. Empty
// values are not sent.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy   string
	XFrameOptions           string
	XContentTypeOptions     string
	StrictTransportSecurity string
	ReferrerPolicy          string
}

// DefaultSecurityHeadersConfig returns headers for a JSON only API
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy:   "default-src 'none'; frame-ancestors 'none'",
		XFrameOptions:           "DENY",
		XContentTypeOptions:     "nosniff",
		StrictTransportSecurity: "max-age=31536000; includeSubDomains",
		ReferrerPolicy:          "no-referrer",
	}
}

// SecurityHeaders returns a middleware that adds security headers to all responses
func SecurityHeaders(config ...SecurityHeadersConfig) fiber.Handler {
	cfg := DefaultSecurityHeadersConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	headers := []struct{ name, value string }{
		{"Content-Security-Policy", cfg.ContentSecurityPolicy},
		{fiber.HeaderXFrameOptions, cfg.XFrameOptions},
		{fiber.HeaderXContentTypeOptions, cfg.XContentTypeOptions},
		{fiber.HeaderReferrerPolicy, cfg.ReferrerPolicy},
	}

	return func(c *fiber.Ctx) error {
		for _, h := range headers {
			if h.value != "" {
				c.Set(h.name, h.value)
			}
		}

		// HSTS only means something over TLS
		if cfg.StrictTransportSecurity != "" && c.Protocol() == "https" {
			c.Set(fiber.HeaderStrictTransportSecurity, cfg.StrictTransportSecurity)
		}

		return c.Next()
	}
}
