package cli

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage server profiles in ~/.qsched/config.yaml",
	}
	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetProfileCmd(),
		newConfigUseProfileCmd(),
		newConfigDeleteProfileCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var reveal, asYAML bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List profiles, marking the active one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			if !reveal {
				cfg = maskConfig(cfg)
			}
			out := cmd.OutOrStdout()

			switch {
			case getOutputFormat(cmd) == "json":
				return PrintJSON(out, cfg)
			case asYAML:
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("marshal config: %w", err)
				}
				_, err = out.Write(data)
				return err
			}

			names := make([]string, 0, len(cfg.Profiles))
			for name := range cfg.Profiles {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, len(names))
			for i, name := range names {
				p := cfg.Profiles[name]
				active := ""
				if name == cfg.CurrentProfile {
					active = "*"
				}
				rows[i] = []string{active, name, orDash(p.Host), orDash(p.Output), orDash(p.Token)}
			}
			PrintTable(out, []string{"", "profile", "host", "output", "token"}, rows)
			_, _ = fmt.Fprintf(out, "config: %s\n", ConfigPath())
			return nil
		},
	}

	cmd.Flags().BoolVar(&reveal, "reveal", false, "Show tokens unmasked")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the config file as YAML")
	return cmd
}

// maskConfig returns a copy of cfg with every token masked.
func maskConfig(cfg *UserConfig) *UserConfig {
	masked := &UserConfig{
		CurrentProfile: cfg.CurrentProfile,
		Profiles:       make(map[string]Profile, len(cfg.Profiles)),
	}
	for name, p := range cfg.Profiles {
		p.Token = maskSecret(p.Token)
		masked.Profiles[name] = p
	}
	return masked
}

// maskSecret keeps the first and last four characters of long secrets.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 10:
		return "****"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

func newConfigSetProfileCmd() *cobra.Command {
	var (
		host   string
		token  string
		output string
		use    bool
	)

	cmd := &cobra.Command{
		Use:   "set-profile <name>",
		Short: "Create or update a profile",
		Example: `  qsched config set-profile prod --host https://scheduler.example.com --use
  qsched config set-profile prod --token "$(qsched auth token --principal alice --secret ...)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			flags := cmd.Flags()
			if flags.Changed("host") {
				if err := validateHost(host); err != nil {
					return err
				}
			}
			if flags.Changed("default-output") {
				if err := validateOutputFormat(output); err != nil {
					return err
				}
			}

			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			p, existed := cfg.Profiles[name]
			if flags.Changed("host") {
				p.Host = host
			}
			if flags.Changed("token") {
				p.Token = token
			}
			if flags.Changed("default-output") {
				p.Output = output
			}
			cfg.Profiles[name] = p
			if use || len(cfg.Profiles) == 1 {
				cfg.CurrentProfile = name
			}
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}

			verb := "created"
			if existed {
				verb = "updated"
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]string{
					"profile": name,
					"status":  verb,
					"active":  cfg.CurrentProfile,
				})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "profile %q %s (active: %q)\n", name, verb, cfg.CurrentProfile)
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Scheduler API base URL")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token sent with every request")
	cmd.Flags().StringVar(&output, "default-output", "", "Default output format (table, json)")
	cmd.Flags().BoolVar(&use, "use", false, "Make this the active profile")
	return cmd
}

func validateHost(host string) error {
	u, err := url.Parse(host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("host must be an http(s) URL, got %q", host)
	}
	return nil
}

func newConfigUseProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use-profile <name>",
		Short: "Set the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			name := args[0]
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("profile %q not found", name)
			}
			cfg.CurrentProfile = name
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "active profile: %s\n", name)
			return nil
		},
	}
}

func newConfigDeleteProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-profile <name>",
		Short: "Remove a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			name := args[0]
			if _, ok := cfg.Profiles[name]; !ok {
				return fmt.Errorf("profile %q not found", name)
			}
			delete(cfg.Profiles, name)
			if cfg.CurrentProfile == name {
				cfg.CurrentProfile = "default"
			}
			if err := SaveUserConfig(cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "profile %q deleted\n", name)
			return nil
		},
	}
}
