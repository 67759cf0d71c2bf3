package main

import (
	"log"
	"os"

	"github.com/jiuwen-dev/agent-studio/db"
	"github.com/jiuwen-dev/agent-studio/internal/auth"
	"github.com/jiuwen-dev/agent-studio/internal/router"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	dsn := os.Getenv("DATABASE_URL")

	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	conn, err := db.Connect(dsn)

	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Migrate(conn); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	if err := db.SeedAdmin(conn); err != nil {
		log.Fatalf("Failed to seed admin user: %v", err)
	}

	if err := auth.InitJWT(); err != nil {
		log.Fatalf("Failed to initialize JWT: %v", err)
	}

	r := router.NewRouter(conn)

	var port string

	if port = os.Getenv("PORT"); port == "" {
		port = "8000"
		log.Println("PORT not set, defaulting to 8000")
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
