// token mints an access token for a dashboard or an agent, signed with the
// API's AUTH_JWT_SECRET.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/developer-yasir/support-panel/internal/auth"
	"github.com/developer-yasir/support-panel/internal/config"
	"github.com/developer-yasir/support-panel/internal/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var subjectID, subjectType string
	var ttlMinutes int
	flagSet := pflag.NewFlagSet("token", pflag.ContinueOnError)
	flagSet.StringVar(&subjectID, "subject", "", "subject id recorded in the token, e.g. wallboard-1")
	flagSet.StringVar(&subjectType, "type", string(domain.SubjectTypeDashboard), "DASHBOARD or AGENT")
	flagSet.IntVar(&ttlMinutes, "ttl", cfg.Auth.AccessTokenTTLMinutes, "lifetime in minutes")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if subjectID == "" {
		return errors.New("--subject is required")
	}

	tm := auth.NewTokenManager(cfg.Auth.JWTSecret, ttlMinutes)
	token, expiresAt, err := tm.GenerateToken(subjectID, domain.SubjectType(strings.ToUpper(subjectType)))
	if err != nil {
		return err
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
