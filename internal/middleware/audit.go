package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoolcore/sms-api/internal/models"
	"github.com/schoolcore/sms-api/internal/repository"
)

// Audit records an audit log entry after successful requests on
// sensitive routes. Failures never affect the response.
func Audit(repo *repository.AuditRepository, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		var schoolID string
		if claimsValue, ok := c.Get(ContextUserKey); ok {
			if claims, ok := claimsValue.(*models.JWTClaims); ok {
				userID = &claims.UserID
				schoolID = claims.SchoolID
			}
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			SchoolID:  schoolID,
			UserID:    userID,
			Action:    action,
			Resource:  resource,
			NewValues: body,
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
	}
}
