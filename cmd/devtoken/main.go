// Command devtoken mints an access token accepted by a locally running server.
// It signs with JWT_SECRET from the environment or .env, the same secret the backend uses.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/nekogravitycat/futsal-booking-flow/internal/auth"
)

func main() {
	userID := flag.String("user", "", "backend user id to put in the subject claim")
	email := flag.String("email", "", "optional email claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if *userID == "" {
		log.Fatal("-user is required")
	}

	token, err := auth.NewJWTManager(secret, *ttl).GenerateAccessToken(*userID, *email)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}
	fmt.Println(token)
}
