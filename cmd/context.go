package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/clickaudit/clickaudit/internal/config"
)

var flagShowSecrets bool

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage stored connection profiles",
}

var contextConfigPathCmd = &cobra.Command{
	Use:   "config-path",
	Short: "Print where profiles are stored",
	RunE: func(_ *cobra.Command, _ []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg := config.DefaultConfig
		if len(cfg.Profiles) == 0 {
			fmt.Println("no profiles stored")
			return nil
		}

		table := uitable.New()
		headerfmt := color.New(color.FgGreen, color.Underline).SprintFunc()
		table.AddRow(headerfmt("CURRENT"), headerfmt("NAME"), headerfmt("URLS"), headerfmt("USER"), headerfmt("TLS"))
		for _, name := range cfg.ProfileNames() {
			p := cfg.Profiles[name]
			marker := ""
			if name == cfg.Current {
				marker = "*"
			}
			table.AddRow(marker, name, strings.Join(p.URLs, ", "), p.User, p.Secure)
		}
		fmt.Println(table)
		return nil
	},
}

var contextCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the profile used by default",
	RunE: func(_ *cobra.Command, _ []string) error {
		if config.DefaultConfig.Current == "" {
			return fmt.Errorf("no current context set, run \"clickaudit context set current NAME\"")
		}
		fmt.Println(config.DefaultConfig.Current)
		return nil
	},
}

var contextShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show one profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		name := args[0]
		profile, ok := config.DefaultConfig.Profiles[name]
		if !ok {
			return fmt.Errorf("context %q not found", name)
		}

		password := "[REDACTED]"
		if flagShowSecrets {
			stored, err := config.GetSecret(name)
			if err != nil {
				return err
			}
			password = stored
		}

		table := uitable.New()
		headerfmt := color.New(color.FgGreen).SprintFunc()
		table.AddRow(headerfmt("Name:"), name)
		table.AddRow(headerfmt("URLs:"), strings.Join(profile.URLs, ", "))
		table.AddRow(headerfmt("User:"), profile.User)
		table.AddRow(headerfmt("Password:"), password)
		table.AddRow(headerfmt("TLS:"), profile.Secure)
		table.AddRow(headerfmt("Accept invalid certificate:"), profile.AcceptInvalidCert)
		fmt.Println(table)
		return nil
	},
}

var contextSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update profiles",
}

var contextSetProfileCmd = &cobra.Command{
	Use:   "profile NAME",
	Short: "Create or update a connection profile",
	Example: `  clickaudit context set profile prod -U ch-1.internal -U ch-2.internal -u auditor -i
  clickaudit context set profile dev -U localhost -u default`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		flags, err := connectionFlags()
		if err != nil {
			return err
		}
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		return saveProfile(config.DefaultConfig, path, args[0], flags)
	},
}

var contextSetCurrentCmd = &cobra.Command{
	Use:   "current NAME",
	Short: "Select the profile used by default",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		return setCurrentContext(config.DefaultConfig, path, args[0])
	},
}

var contextDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a profile and its stored password",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		path, err := resolvedConfigPath()
		if err != nil {
			return err
		}
		return deleteContext(config.DefaultConfig, path, args[0])
	},
}

// saveProfile stores the profile in the config file and its password in
// the keyring. The first stored profile becomes the current one.
func saveProfile(cfg *config.Config, path, name string, flags config.ConnectionFlags) error {
	if len(flags.URLs) == 0 || flags.User == "" {
		return fmt.Errorf("a profile needs at least --url and --user")
	}

	if cfg.Profiles == nil {
		cfg.Profiles = map[string]config.Profile{}
	}
	cfg.Profiles[name] = config.Profile{
		URLs:              flags.URLs,
		User:              flags.User,
		Secure:            flags.Secure,
		AcceptInvalidCert: flags.AcceptInvalidCert,
	}
	if cfg.Current == "" {
		cfg.Current = name
	}

	if err := cfg.Save(path); err != nil {
		return err
	}
	if flags.Password != "" {
		if err := config.SetSecret(name, flags.Password); err != nil {
			return err
		}
	}
	fmt.Printf("context %q saved\n", name)
	return nil
}

func setCurrentContext(cfg *config.Config, path, name string) error {
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	cfg.Current = name
	if err := cfg.Save(path); err != nil {
		return err
	}
	fmt.Printf("current context is now %q\n", name)
	return nil
}

func deleteContext(cfg *config.Config, path, name string) error {
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	delete(cfg.Profiles, name)
	if cfg.Current == name {
		cfg.Current = ""
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	if err := config.DeleteSecret(name); err != nil {
		return err
	}
	fmt.Printf("context %q deleted\n", name)
	return nil
}

func init() {
	contextShowCmd.Flags().BoolVar(&flagShowSecrets, "show-secrets", false, "print the stored password instead of a placeholder")
	registerConnectionFlags(contextSetProfileCmd)
	contextSetCmd.AddCommand(contextSetProfileCmd, contextSetCurrentCmd)
	contextCmd.AddCommand(contextConfigPathCmd, contextListCmd, contextCurrentCmd, contextShowCmd, contextSetCmd, contextDeleteCmd)
	rootCmd.AddCommand(contextCmd)
}
