// Command issue-token inserts a bearer identity row for local development.
// In production identities arrive from the external auth service.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"twentyone/internal/config"
	"twentyone/internal/db"
)

func main() {
	userID := flag.String("user", "", "external user id")
	name := flag.String("name", "", "display name")
	flag.Parse()
	if *userID == "" || *name == "" {
		log.Fatal("usage: issue-token -user <id> -name <display name>")
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	conn, err := db.Open(os.Getenv("DATABASE_URL"), config.Load())
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	identity := db.Identity{
		Token:       uuid.NewString(),
		UserID:      *userID,
		DisplayName: *name,
	}
	if err := conn.Create(&identity).Error; err != nil {
		log.Fatalf("failed to insert identity: %v", err)
	}
	fmt.Println(identity.Token)
}
