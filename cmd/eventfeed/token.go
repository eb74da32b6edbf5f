package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/eventfeed/auth/jwt"
	"github.com/kbukum/eventfeed/validation"
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Issue an access token for the stream and publish endpoints",
	Long: `Signs a JWT with the auth.jwt settings from the configuration.
Pass --secret to sign without a config file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject := args[0]
		if appErr := validation.New().
			Required("subject", subject).
			SingleLine("subject", subject).
			MaxLength("subject", subject, 256).
			Validate(); appErr != nil {
			return appErr
		}

		secret, _ := cmd.Flags().GetString("secret")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		var jwtCfg jwt.Config
		if secret != "" {
			jwtCfg.Secret = secret
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.JWT == nil {
				return fmt.Errorf("auth.jwt is not configured; pass --secret")
			}
			jwtCfg = *cfg.Auth.JWT
		}

		svc, err := jwt.NewService(jwtCfg)
		if err != nil {
			return err
		}
		var token string
		if ttl > 0 {
			token, err = svc.GenerateWithTTL(subject, ttl)
		} else {
			token, err = svc.Generate(subject)
		}
		if err != nil {
			return fmt.Errorf("sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("secret", "", "HMAC secret, overrides auth.jwt.secret")
	tokenCmd.Flags().Duration("ttl", time.Duration(0), "token lifetime (default: auth.jwt.access_token_ttl)")
}
