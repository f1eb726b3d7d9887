package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	sessionCookie = "playground_session"
	sessionKey    = "session"
)

func withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCookie)
		if err == nil {
			if _, parseErr := uuid.FromString(id); parseErr != nil {
				err = parseErr
			}
		}

		if err != nil {
			u, genErr := uuid.NewV4()
			if genErr != nil {
				log.Error("[Session] Couldn't create session id: ", genErr.Error())
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			id = u.String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, id, 0, "/", "", false, true)
		}

		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionId(c *gin.Context) string {
	return c.GetString(sessionKey)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With, X-PINGOTHER, X-File-Name, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(log.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.Error(c.Errors.String())
			return
		}
		entry.Info("[Web] request")
	}
}
