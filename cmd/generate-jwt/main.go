package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"launchpad-backend/internal/config"
	"launchpad-backend/internal/handlers"
)

// Issues an operator token without the login round trip, for local testing.
func main() {
	configPath := flag.String("config", "", "path to config yaml")
	username := flag.String("user", "", "operator username (default from config)")
	ttl := flag.Duration("ttl", 0, "token lifetime (default auth.tokenTTLHours)")
	flag.Parse()

	_ = godotenv.Load()
	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	auth := config.AppConfig.Auth
	if auth.JWTSecret == "" {
		fmt.Println("auth.jwtSecret (or JWT_SECRET) must be set")
		os.Exit(1)
	}
	if *username == "" {
		*username = auth.OperatorUsername
	}
	if *ttl == 0 {
		*ttl = time.Duration(auth.TokenTTLHours) * time.Hour
	}

	tokenString, expiresAt, err := handlers.NewTokenIssuer(auth.JWTSecret, *ttl).Issue(*username)
	if err != nil {
		fmt.Printf("Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("============================================================")
	fmt.Println("Operator JWT Generated")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(tokenString)
	fmt.Println()
	fmt.Printf("  Operator: %s\n", *username)
	fmt.Printf("  Expires:  %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:8080/api/trade/sessions\n", tokenString)
}
