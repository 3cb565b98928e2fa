// Command admintoken mints a bearer token for the admin cleanup endpoints.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"shipa-backend/config"
	"shipa-backend/internal/service"
)

func main() {
	var (
		subject = flag.String("subject", "", "operator the token is issued to")
		cfgPath = flag.String("config", "", "path to config file")
	)
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "-subject is required")
		os.Exit(2)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	tokens := service.NewJWTTokenService(cfg.Security.AdminJWTSecret, cfg.Security.AdminJWTExpiry, cfg.Security.AdminJWTIssuer)
	token, expiresAt, err := tokens.Generate(*subject, service.RoleAdmin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
}
