package handlers

import (
	"errors"
	"net/http"

	"presslite/internal/middleware"
	"presslite/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db *gorm.DB
}

func NewAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{db: db}
}

func (h *AuthHandler) ShowLogin(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get(middleware.SessionUserKey) != nil {
		c.Redirect(http.StatusFound, "/admin/posts")
		return
	}

	Render(c, http.StatusOK, "admin/login.html", gin.H{
		"Title": "Admin Login",
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	var user models.AdminUser
	err := h.db.Where("username = ? OR email = ?", username, username).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			// Keep the driver detail in the log, not the response
			c.Error(err)
		}
		Render(c, http.StatusUnauthorized, "admin/login.html", gin.H{
			"Title":    "Admin Login",
			"Error":    "Invalid username or password.",
			"Username": username,
		})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		Render(c, http.StatusUnauthorized, "admin/login.html", gin.H{
			"Title":    "Admin Login",
			"Error":    "Invalid username or password.",
			"Username": username,
		})
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	session.Save()

	// Mint the CSRF token for the new session up front
	middleware.EnsureCSRFToken(c)

	c.Redirect(http.StatusFound, "/admin/posts")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/admin/login")
}
