package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// Prints a bcrypt hash for the operator password and the current TOTP code.
func main() {
	password := flag.String("password", "", "operator password to hash")
	secret := flag.String("totp-secret", os.Getenv("OPERATOR_TOTP_SECRET"), "base32 TOTP secret")
	flag.Parse()

	if *password == "" && *secret == "" {
		fmt.Println("usage: operator-credentials -password <pw> [-totp-secret <base32>]")
		os.Exit(2)
	}

	if *password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			fmt.Printf("Error hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("OPERATOR_PASSWORD_HASH='%s'\n", hash)
	}

	if *secret != "" {
		code, err := totp.GenerateCode(*secret, time.Now())
		if err != nil {
			fmt.Printf("Error generating TOTP code: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Current TOTP Code: %s\n", code)
		fmt.Printf("Valid for: ~30 seconds\n")
	}
}
