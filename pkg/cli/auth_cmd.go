package cli

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"query-scheduler/pkg/client"
)

func newAuthCmd(c *client.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication helpers",
	}

	cmd.AddCommand(newAuthTokenCmd())
	cmd.AddCommand(newAuthWhoamiCmd(c))
	return cmd
}

func newAuthTokenCmd() *cobra.Command {
	var (
		principal string
		secret    string
		claim     string
		expires   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate a dev-mode token and save it to the active profile",
		Long:  "Generate an HS256 token for development and testing. The server must run with the same JWT_SECRET. The token is saved to the active profile.",
		Example: `  # Log in as alice against a dev server
  qsched auth token --principal alice@example.com --secret dev-secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			claims := jwt.MapClaims{
				"sub": principal,
				"iat": now.Unix(),
				"exp": now.Add(expires).Unix(),
			}
			if claim != "" && claim != "sub" {
				claims[claim] = principal
			}
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			profileName, _ := cmd.Root().PersistentFlags().GetString("profile")
			if profileName == "" {
				profileName = cfg.CurrentProfile
			}
			p := cfg.Profiles[profileName]
			p.Token = signed
			cfg.Profiles[profileName] = p
			if err := SaveUserConfig(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().StringVar(&principal, "principal", "", "Principal name")
	cmd.Flags().StringVar(&secret, "secret", "", "Signing secret (HS256)")
	cmd.Flags().StringVar(&claim, "claim", "email", "Claim that carries the principal name")
	cmd.Flags().DurationVar(&expires, "expires", 24*time.Hour, "Token expiry duration")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}

func newAuthWhoamiCmd(c *client.Client) *cobra.Command {
	var claim string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the principal of the configured token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := principalFromToken(c.Token, claim)
			if err != nil {
				return err
			}
			if name == "" {
				name = "(not logged in)"
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
	cmd.Flags().StringVar(&claim, "claim", "email", "Claim that carries the principal name")
	return cmd
}

// principalFromToken reads the principal name from a token without
// verifying it; the server does the verification. An empty token yields
// an empty name.
func principalFromToken(token, claim string) (string, error) {
	if token == "" {
		return "", nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if v, ok := claims[claim].(string); ok && v != "" {
		return v, nil
	}
	sub, _ := claims["sub"].(string)
	return sub, nil
}
