package router

import (
	"presslite/internal/handlers"
	"presslite/internal/middleware"
	"presslite/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, uploads *services.Uploader) {
	authHandler := handlers.NewAuthHandler(db)
	postHandler := handlers.NewPostHandler(db, uploads)

	r.GET("/admin/login", authHandler.ShowLogin)
	r.POST("/admin/login", authHandler.Login)
	r.GET("/admin/logout", authHandler.Logout)

	// Post management (all behind the admin session)
	admin := r.Group("/admin")
	admin.Use(middleware.AuthRequired())
	{
		admin.GET("/posts", postHandler.List)          // Manage posts with filters + pagination
		admin.GET("/posts/new", postHandler.ShowAdd)   // Add form
		admin.POST("/posts/new", postHandler.Create)   // Create submission
		admin.GET("/posts/:id/edit", postHandler.ShowEdit)
		admin.POST("/posts/:id/edit", postHandler.Update)
		admin.POST("/posts/bulk", postHandler.Bulk)    // publish | draft | delete
		admin.POST("/posts/delete", postHandler.Delete)
	}
}
