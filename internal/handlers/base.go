package handlers

import (
	"encoding/gob"

	"presslite/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys for the flash/redisplay round trip. All of them are one-shot:
// written before a redirect, consumed on the next render.
const (
	flashMessageKey = "flash_message"
	flashTypeKey    = "flash_message_type"
	formDataKey     = "form_data"
	formErrorKey    = "form_error"
)

func init() {
	// The cookie session store serializes with gob.
	gob.Register(map[string]string{})
	gob.Register([]string{})
}

// Render injects the logged-in user, the CSRF token and any pending flash
// state, then renders the named template.
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	if user, exists := c.Get(middleware.CheckUserKey); exists {
		obj["CurrentUser"] = user
	}
	obj["CSRFToken"] = middleware.EnsureCSRFToken(c)

	if msg, typ := PopFlash(c); msg != "" {
		obj["FlashMessage"] = msg
		obj["FlashType"] = typ
	}

	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// SetFlash stores a one-time status message shown on the next rendered page.
func SetFlash(c *gin.Context, message, messageType string) {
	session := sessions.Default(c)
	session.Set(flashMessageKey, message)
	session.Set(flashTypeKey, messageType)
	session.Save()
}

// PopFlash returns and clears the pending flash message, if any.
func PopFlash(c *gin.Context) (string, string) {
	session := sessions.Default(c)
	msg, _ := session.Get(flashMessageKey).(string)
	typ, _ := session.Get(flashTypeKey).(string)
	if msg != "" {
		session.Delete(flashMessageKey)
		session.Delete(flashTypeKey)
		session.Save()
	}
	return msg, typ
}

// SaveFormState preserves a failed submission and its ordered error list for
// redisplay after the redirect back to the form.
func SaveFormState(c *gin.Context, data map[string]string, errs []string) {
	session := sessions.Default(c)
	session.Set(formDataKey, data)
	if len(errs) > 0 {
		session.Set(formErrorKey, errs)
	}
	session.Save()
}

// PopFormState returns and clears preserved form data and errors.
func PopFormState(c *gin.Context) (map[string]string, []string) {
	session := sessions.Default(c)
	data, _ := session.Get(formDataKey).(map[string]string)
	errs, _ := session.Get(formErrorKey).([]string)
	if data != nil || errs != nil {
		session.Delete(formDataKey)
		session.Delete(formErrorKey)
		session.Save()
	}
	if data == nil {
		// Templates index into this map, keep it non-nil.
		data = map[string]string{}
	}
	return data, errs
}
