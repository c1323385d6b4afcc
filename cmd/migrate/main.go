package main

import (
	"fmt"
	"log"
	"os"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/auth"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/database"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/services"
)

// Connects to the database, migrates the schema and seeds the default
// policies. Uses DATABASE_DSN, or the first argument.
func main() {
	dsn := os.Getenv("DATABASE_DSN")
	if len(os.Args) > 1 {
		dsn = os.Args[1]
	}
	if dsn == "" {
		log.Fatal("usage: migrate <dsn> (or set DATABASE_DSN)")
	}

	db, err := database.Open(dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	fmt.Println("database connection ok")

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}
	fmt.Println("schema migrated")

	cas, err := auth.NewCasbinService(db, os.Getenv("CASBIN_MODEL_PATH"))
	if err != nil {
		log.Fatalf("Failed to start casbin: %v", err)
	}
	if err := services.NewPolicyService(cas.E).SeedDefaults(); err != nil {
		log.Fatalf("Failed to seed policies: %v", err)
	}

	var userCount, policyCount int64
	if err := db.Table("users").Count(&userCount).Error; err != nil {
		log.Fatalf("Failed to query users table: %v", err)
	}
	if err := db.Table("casbin_rule").Count(&policyCount).Error; err != nil {
		log.Fatalf("Failed to query casbin_rule table: %v", err)
	}
	fmt.Printf("users: %d, policies: %d\n", userCount, policyCount)
}
