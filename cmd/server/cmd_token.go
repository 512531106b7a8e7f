package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/middleware"
)

var (
	tokenUserID int
	tokenEmail  string
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token signed with JWT_SECRET",
	Long: `Mint an admin bearer token signed with JWT_SECRET.

Tokens are normally issued by the Medusa auth service; this is meant for
operators and scripts talking to the schedule API directly.

Examples:
  medusa-scheduler token --user 1 --ttl 1h
`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().IntVar(&tokenUserID, "user", 1, "User id placed in the sub claim")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Optional email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	token, err := middleware.GenerateJWT(tokenUserID, tokenEmail, cfg.JWTSecret, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
