package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"commenthub/internal/httpapi/protection"

	"github.com/gin-gonic/gin"
)

// Cookie names shared with the comment creation handler.
const (
	HumanProofCookie = "the_comment_cookies"
	ViewTokenCookie  = "comments_view_token"
)

// VisitorTokenConfig controls cookie lifetimes and transport flags.
type VisitorTokenConfig struct {
	HumanProofTTL time.Duration
	ViewTokenTTL  time.Duration
	Secure        bool
}

// VisitorToken issues the two visitor identity cookies on ordinary page
// views: the human-proof cookie carrying the sentinel value and the view
// token identifying an anonymous visitor. Issuance is idempotent, existing
// cookies are never replaced. This middleware must NOT be mounted on the
// comment creation route: a submission has to prove the cookie existed from
// a prior request, not one set by the submission itself.
func VisitorToken(cfg VisitorTokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := c.Cookie(HumanProofCookie); err != nil {
			c.SetCookie(HumanProofCookie, protection.CookiesToken,
				int(cfg.HumanProofTTL.Seconds()), "/", "", cfg.Secure, true)
		}

		if _, err := c.Cookie(ViewTokenCookie); err != nil {
			c.SetCookie(ViewTokenCookie, newViewToken(),
				int(cfg.ViewTokenTTL.Seconds()), "/", "", cfg.Secure, true)
		}

		c.Next()
	}
}

// newViewToken generates an unguessable opaque visitor token.
func newViewToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(buf)
}
