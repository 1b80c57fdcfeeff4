package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/config"
	pkgauth "github.com/matiasleandrokruk/cropdoctor/pkg/auth"
)

func newTokenCmd(flags *globalFlags) *cobra.Command {
	var (
		secret   string
		clientID string
		scope    string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Issue a bearer token for the JSON API",
		Example: `  JWT_SECRET=... cropdoctor token --client field-app --ttl 720h`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("secret") || !cmd.Flags().Changed("ttl") {
				cfg, err := config.Read(flags.configFile)
				if err != nil {
					return err
				}
				if !cmd.Flags().Changed("secret") {
					secret = cfg.Auth.JWTSecret
				}
				if !cmd.Flags().Changed("ttl") && cfg.Auth.JWTExpiry > 0 {
					ttl = cfg.Auth.JWTExpiry
				}
			}
			signer, err := pkgauth.NewSigner(secret, ttl)
			if err != nil {
				return usageError{fmt.Errorf("--secret (or JWT_SECRET / auth.jwt_secret): %w", err)}
			}
			token, err := signer.GenerateJWT(clientID, scope)
			if err != nil {
				return usageError{err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), token) //nolint:errcheck
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC signing secret (default from JWT_SECRET or auth.jwt_secret)")
	cmd.Flags().StringVar(&clientID, "client", "", "Client id stored as the token subject")
	cmd.Flags().StringVar(&scope, "scope", pkgauth.ScopeDiagnose, "Token scope")
	cmd.Flags().DurationVar(&ttl, "ttl", pkgauth.DefaultJWTExpiry, "Token lifetime")
	return cmd
}
