// tokengen mints an API token for a user, signed with the configured JWT
// secret and expiry. Token issuance normally lives in the surrounding SSO;
// this covers local development and operational access.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/subineru/redmine-stakeholder/internal/auth"
	"github.com/subineru/redmine-stakeholder/internal/config"
)

func main() {
	user := flag.String("user", "", "user UUID to mint a token for")
	flag.Parse()

	userID, err := uuid.Parse(*user)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tokengen: -user must be a valid UUID")
		os.Exit(1)
	}

	cfg := config.Load()
	token, err := auth.GenerateJWT(cfg.JWTSecret, userID, cfg.JWTExpiration)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tokengen:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
