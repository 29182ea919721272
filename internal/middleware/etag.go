package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ETagConfig defines the configuration for ETag middleware
type ETagConfig struct {
	// Weak marks the tag as a weak validator (W/"...")
	Weak bool
	// EnableConditional answers a matching If-None-Match with 304
	EnableConditional bool
}

// DefaultETagConfig returns the default configuration
func DefaultETagConfig() ETagConfig {
	return ETagConfig{Weak: true, EnableConditional: true}
}

// ETag tags successful GET and HEAD responses with a hash of their body.
func ETag(config ...ETagConfig) fiber.Handler {
	cfg := DefaultETagConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		body := c.Response().Body()
		if status < 200 || status >= 300 || len(body) == 0 {
			return nil
		}

		etag := generateETag(body, cfg.Weak)
		c.Set(fiber.HeaderETag, etag)

		if cfg.EnableConditional && etagMatches(etag, c.Get(fiber.HeaderIfNoneMatch)) {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}

func generateETag(body []byte, weak bool) string {
	hash := sha256.Sum256(body)
	tag := `"` + hex.EncodeToString(hash[:16]) + `"`
	if weak {
		return "W/" + tag
	}
	return tag
}

// etagMatches compares weakly against a comma separated If-None-Match list
func etagMatches(etag, ifNoneMatch string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}

// CacheControlConfig defines the Cache-Control directives
type CacheControlConfig struct {
	// MaxAge in seconds
	MaxAge int
	// Private restricts caching to the client
	Private bool
	// NoCache requires revalidation before reuse
	NoCache bool
}

// String renders the header value
func (cc CacheControlConfig) String() string {
	var directives []string
	if cc.Private {
		directives = append(directives, "private")
	} else if cc.MaxAge > 0 {
		directives = append(directives, "public")
	}
	if cc.NoCache {
		directives = append(directives, "no-cache")
	}
	if cc.MaxAge > 0 {
		directives = append(directives, "max-age="+strconv.Itoa(cc.MaxAge))
	}
	return strings.Join(directives, ", ")
}

// CacheControl sets Cache-Control on successful GET and HEAD responses
func CacheControl(config CacheControlConfig) fiber.Handler {
	value := config.String()

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet && c.Method() != fiber.MethodHead {
			return c.Next()
		}

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status >= 200 && status < 300 && value != "" {
			c.Set(fiber.HeaderCacheControl, value)
		}
		return nil
	}
}
