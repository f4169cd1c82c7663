// Command devtoken mints an HS256 access token for local development when
// LENSPORTAL_AUTH_MODE=jwt.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/lensportal/lensportal-backend/pkg/auth"
	"github.com/lensportal/lensportal-backend/pkg/config"
	"github.com/lensportal/lensportal-backend/pkg/enums"
	"github.com/lensportal/lensportal-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "devtoken"})
	_ = godotenv.Load()

	userID := flag.String("user", "", "subject user id")
	email := flag.String("email", "", "email claim")
	role := flag.String("role", string(enums.RoleClient), "role claim: admin|client")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if cfg.App.IsProd() {
		fmt.Fprintln(os.Stderr, "devtoken is disabled in production")
		os.Exit(1)
	}

	parsedRole, err := enums.ParseRole(*role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -role: %v\n", err)
		os.Exit(1)
	}

	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), auth.AccessTokenPayload{
		UserID: *userID,
		Email:  *email,
		Role:   parsedRole,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
