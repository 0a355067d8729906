package main

import (
	"fmt"
	"os"

	"github.com/wellspring/marketplace-server-go/internal/auth"
	"github.com/wellspring/marketplace-server-go/internal/config"
	"github.com/wellspring/marketplace-server-go/internal/model"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: JWT_SECRET=... go run scripts/issue-token.go <user-id> <client|professional|admin>\n")
		os.Exit(1)
	}

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		fmt.Fprintf(os.Stderr, "Error: JWT_SECRET must be set and at least 32 characters\n")
		os.Exit(1)
	}

	role := model.Role(os.Args[2])
	switch role {
	case model.RoleClient, model.RoleProfessional, model.RoleAdmin:
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", role)
		os.Exit(1)
	}

	cfg := config.Config{JWTTTLHours: 24}
	token, err := auth.NewTokenService(secret, cfg.JWTTTL()).Issue(os.Args[1], role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
