package middleware

import (
	"net/http"
	"presslite/internal/db"
	"presslite/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const CheckUserKey = "admin_user"
const SessionUserKey = "admin_user_id"

// AuthRequired ensures an admin is logged in. Unauthenticated requests are
// redirected to the login view without touching the submission.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(SessionUserKey)
		if userID == nil {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoadUser retrieves the admin user from the session and sets it on the
// context for handlers and templates.
func LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get(SessionUserKey)

		if userID != nil {
			var user models.AdminUser
			result := db.DB.First(&user, userID)
			if result.Error == nil {
				c.Set(CheckUserKey, &user)
			}
		}
		c.Next()
	}
}
