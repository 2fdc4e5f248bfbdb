package main

import (
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"presslite/internal/db"
	"presslite/internal/middleware"
	"presslite/internal/router"
	"presslite/internal/services"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Database
	db.Init()

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	uploads := services.NewUploader(uploadDir)

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("presslite_admin", store))

	// Load Templates using Multitemplate to avoid collision and allow handler names
	r.HTMLRender = loadTemplates("./web/templates")

	// Static Assets + stored featured images
	r.Static("/static", "./web/static")
	r.Static("/uploads", uploadDir)

	// Middleware
	r.Use(middleware.LoadUser())

	router.RegisterRoutes(r, db.DB, uploads)

	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/admin/posts")
	})

	r.NoRoute(func(c *gin.Context) {
		c.HTML(http.StatusNotFound, "error.html", gin.H{
			"Title":   "Not Found",
			"Code":    http.StatusNotFound,
			"Message": "The page you were looking for does not exist.",
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Presslite admin starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	includes, err := filepath.Glob(templatesDir + "/includes/*.html")
	if err != nil {
		panic(err)
	}

	// Helper to assemble files
	assemble := func(view string) []string {
		files := make([]string, 0)
		files = append(files, layouts...)
		files = append(files, includes...)
		files = append(files, view)
		return files
	}

	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"formatDate": func(t time.Time) string {
			return t.Format("2006-01-02 15:04")
		},
		"safeHTML": func(s string) template.HTML {
			return template.HTML(s)
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"derefUint": func(v *uint) uint {
			if v == nil {
				return 0
			}
			return *v
		},
	}

	r.AddFromFilesFuncs("admin/login.html", funcMap, assemble(templatesDir+"/views/admin/login.html")...)
	r.AddFromFilesFuncs("posts/manage.html", funcMap, assemble(templatesDir+"/views/posts/manage.html")...)
	r.AddFromFilesFuncs("posts/form.html", funcMap, assemble(templatesDir+"/views/posts/form.html")...)
	r.AddFromFilesFuncs("error.html", funcMap, assemble(templatesDir+"/views/error.html")...)

	return r
}
