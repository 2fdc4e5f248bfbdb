package db

import (
	"log"
	"os"
	"presslite/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=presslite port=5432 sslmode=disable"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	// Auto Migrate
	err = DB.AutoMigrate(
		&models.AdminUser{},
		&models.Category{},
		&models.Post{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	seedAdminUser()
	seedCategories()
}

// seedAdminUser creates the initial admin account so the panel is reachable
// on a fresh database. Credentials come from the environment.
func seedAdminUser() {
	var count int64
	DB.Model(&models.AdminUser{}).Count(&count)
	if count > 0 {
		return
	}

	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "change_me"
		log.Println("ADMIN_PASSWORD not set, seeding admin user with default password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("Failed to hash seed admin password: %v", err)
		return
	}

	user := models.AdminUser{
		Username:     username,
		FullName:     "Administrator",
		Email:        username + "@localhost",
		PasswordHash: string(hash),
	}
	if err := DB.Create(&user).Error; err != nil {
		log.Printf("Failed to create seed admin user: %v", err)
		return
	}
	log.Printf("Seed admin user %q created", username)
}

func seedCategories() {
	var count int64
	DB.Model(&models.Category{}).Count(&count)
	if count > 0 {
		return
	}

	categories := []models.Category{
		{Name: "General"},
		{Name: "News"},
		{Name: "Tutorials"},
	}

	for _, category := range categories {
		if err := DB.Create(&category).Error; err != nil {
			log.Printf("Failed to create category %s: %v", category.Name, err)
		}
	}
	log.Println("Initial categories created")
}
