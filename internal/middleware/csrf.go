package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const SessionCSRFKey = "csrf_token"

// EnsureCSRFToken returns the session's CSRF token, minting one when absent.
// Forms embed it as the csrf_token field.
func EnsureCSRFToken(c *gin.Context) string {
	session := sessions.Default(c)
	if token, ok := session.Get(SessionCSRFKey).(string); ok && token != "" {
		return token
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	token := base64.URLEncoding.EncodeToString(b)
	session.Set(SessionCSRFKey, token)
	session.Save()
	return token
}

// ValidCSRFToken checks the submitted csrf_token form field against the
// session-bound token. Write handlers call this before any other processing.
func ValidCSRFToken(c *gin.Context) bool {
	submitted := c.PostForm(SessionCSRFKey)
	if submitted == "" {
		return false
	}

	session := sessions.Default(c)
	token, ok := session.Get(SessionCSRFKey).(string)
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) == 1
}
