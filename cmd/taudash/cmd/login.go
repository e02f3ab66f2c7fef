package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/autoperf/taudash/internal/clientstate"
	"github.com/autoperf/taudash/internal/remote"
	"github.com/autoperf/taudash/internal/taudb"
)

var (
	loginProfile  string
	loginDriver   string
	loginHost     string
	loginDB       string
	loginUser     string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Test database credentials against the server and save a profile",
	Long: `Log in to the taudash server with database parameters and, when a
profile name is given, save them (without the password) as the active
connection profile. 'taudash browse' pre-fills its login form from the
active profile and restores that profile's last confirmed selection.

Without flags an interactive form asks for the fields.

Examples:
  taudash login
  taudash login --profile lab --db lulesh.db --user perf`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginProfile, "profile", "", "save as this profile name")
	loginCmd.Flags().StringVar(&loginDriver, "driver", "", "database driver (sqlite3 or duckdb)")
	loginCmd.Flags().StringVar(&loginHost, "host", "", "database host")
	loginCmd.Flags().StringVar(&loginDB, "db", "", "database name")
	loginCmd.Flags().StringVar(&loginUser, "user", "", "database user")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "database password")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	creds := remote.Credentials{
		Driver:   firstNonEmpty(loginDriver, cfg.Datasource.Driver),
		Host:     firstNonEmpty(loginHost, cfg.Datasource.DBHost),
		Name:     firstNonEmpty(loginDB, cfg.Datasource.DBName),
		User:     firstNonEmpty(loginUser, cfg.Datasource.DBUser),
		Password: loginPassword,
	}
	profileName := loginProfile

	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	if interactive && loginDB == "" {
		if err := loginForm(&creds, &profileName).RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return fmt.Errorf("login form: %w", err)
		}
	}
	if creds.Name == "" {
		return errors.New("database name is required (--db)")
	}

	client, err := newRemoteClient()
	if err != nil {
		return err
	}
	ok, err := client.Login(ctx, creds)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if !ok {
		return fmt.Errorf("login failed: the server could not open %q", creds.Name)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s (database %s)\n", client.BaseURL(), creds.Name)

	if profileName == "" {
		return nil
	}
	st, err := openClientState()
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.AddSession(ctx, clientstate.Session{
		Name:   profileName,
		Driver: creds.Driver,
		DBHost: creds.Host,
		DBName: creds.Name,
		DBUser: creds.User,
	}); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if err := st.SetActive(ctx, profileName); err != nil {
		return fmt.Errorf("set active profile: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %q (now active)\n", profileName)
	return nil
}

func loginForm(creds *remote.Credentials, profileName *string) *huh.Form {
	required := func(s string) error {
		if s == "" {
			return errors.New("required")
		}
		return nil
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Driver").
				Options(huh.NewOptions(taudb.DriverSQLite, taudb.DriverDuckDB)...).
				Value(&creds.Driver),
			huh.NewInput().Title("Host").Value(&creds.Host),
			huh.NewInput().Title("Database").Value(&creds.Name).Validate(required),
			huh.NewInput().Title("User").Value(&creds.User),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&creds.Password),
			huh.NewInput().Title("Save as profile").Description("leave empty to skip").Value(profileName),
		),
	)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
