package main

import (
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/pkg/jwt"
)

// Prints a fresh JWT_SECRET, or with -user signs an access token against the
// configured secret for local testing.
func main() {
	var (
		userFlag  string
		rolesFlag string
		ttl       time.Duration
	)
	flag.StringVar(&userFlag, "user", "", "user id to issue a token for")
	flag.StringVar(&rolesFlag, "roles", "customer", "comma separated roles")
	flag.DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	flag.Parse()

	if userFlag == "" {
		secret := make([]byte, 48)
		if _, err := rand.Read(secret); err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		fmt.Printf("JWT_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(secret))
		return
	}

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "kjkhandala-reservations"
	}

	userID, err := uuid.Parse(userFlag)
	if err != nil {
		log.Fatalf("Invalid user id: %v", err)
	}

	var roles []string
	for _, r := range strings.Split(rolesFlag, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	token, err := jwt.NewService(secret, issuer, ttl).GenerateAccessToken(userID, roles)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
