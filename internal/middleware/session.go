package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const sessionKey = "sessionID"

// Session assigns anonymous visitors a session cookie so guest carts
// survive across requests. Authenticated requests still carry the cookie
// until the cart merge on login consumes it.
func Session(cookieName string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cookieName)
		if err != nil || sid == "" {
			sid = uuid.NewString()
			c.SetCookie(cookieName, sid, int(ttl.Seconds()), "/", "", false, true)
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

func GetSessionID(c *gin.Context) string {
	sid, _ := c.Get(sessionKey)
	s, _ := sid.(string)
	return s
}
