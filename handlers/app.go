package handlers

import "github.com/gofiber/fiber/v2"

// AppConfig is the fiber config for the public server. X-Forwarded-For is
// honoured only when the connection comes from one of trustedProxies, and
// only valid IPs are taken from it; otherwise c.IP() is the peer address.
func AppConfig(trustedProxies []string) fiber.Config {
	cfg := fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	}
	if len(trustedProxies) > 0 {
		cfg.ProxyHeader = fiber.HeaderXForwardedFor
		cfg.EnableTrustedProxyCheck = true
		cfg.TrustedProxies = trustedProxies
		cfg.EnableIPValidation = true
	}
	return cfg
}
