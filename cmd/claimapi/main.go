// Package main is the entrypoint for the claim intake API: CPF-based OTP
// sign-in and the signed-in user's profile.
package main

import (
	"context"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/bagly/claim-intake/internal/server"
)

const (
	serviceName    = "claimapi"
	serviceVersion = "0.1.0"
)

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return server.Run(ctx, server.Params{
		Name:    serviceName,
		Version: serviceVersion,
		Setup:   setup,
	}, nil)
}
