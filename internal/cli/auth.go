package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/weradio/internal/weradio/auth"
	"github.com/tessro/weradio/internal/wizard"
)

var (
	loginUsername string
	loginPassword string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage station authentication",
	Long:  `Sign in to the station. Queue and library changes need a signed-in account.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the station",
	Long: `Signs in with a station username and password and stores the
returned token. Prompts for missing credentials in a terminal.`,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long:  `Checks the stored token against the station.`,
	RunE:  runAuthStatus,
}

func init() {
	authLoginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "station username")
	authLoginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "station password")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	username, password := loginUsername, loginPassword
	if username == "" || password == "" {
		username, password, err = wizard.NewInteractive().PromptLogin(ctx, username)
		if err != nil {
			return err
		}
	}

	cred, err := auth.Login(ctx, st.api, st.store, username, password)
	if err != nil {
		return err
	}

	if JSONOutput() {
		return writeJSON(map[string]string{
			"status":   "authenticated",
			"username": cred.Username,
			"role":     cred.Role,
		})
	}

	fmt.Printf("Signed in as %s", cred.Username)
	if cred.Role != "" {
		fmt.Printf(" (%s)", cred.Role)
	}
	fmt.Println()
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	store, err := auth.NewStore(cfg.Auth.TokenFile)
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	if !store.Exists() {
		if JSONOutput() {
			return writeJSON(map[string]string{"status": "not_authenticated"})
		}
		fmt.Println("Not signed in.")
		return nil
	}

	if err := store.Delete(); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}

	if JSONOutput() {
		return writeJSON(map[string]string{"status": "logged_out"})
	}
	fmt.Println("Signed out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	st, err := newStation(false)
	if err != nil {
		return err
	}
	defer st.close()

	res, err := auth.Status(cmd.Context(), st.api, st.store)
	if err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}

	cred := st.store.Credential()

	if JSONOutput() {
		out := map[string]any{
			"authenticated": res.Valid,
		}
		if res.User != nil {
			out["username"] = res.User.Username
			out["role"] = res.User.Role
		}
		if res.Error != "" {
			out["error"] = res.Error
		}
		if cred != nil {
			out["saved_at"] = cred.SavedAt.Format(time.RFC3339)
		}
		return writeJSON(out)
	}

	if !res.Valid {
		if cred == nil {
			fmt.Println("Not signed in.")
		} else {
			fmt.Printf("Stored token for %s is no longer valid: %s\n", cred.Username, res.Error)
		}
		fmt.Println("Run 'weradio auth login' to sign in.")
		return nil
	}

	name := ""
	if res.User != nil {
		name = res.User.Username
	} else if cred != nil {
		name = cred.Username
	}
	fmt.Printf("Signed in as: %s\n", name)
	if res.User != nil && res.User.Role != "" {
		fmt.Printf("Role: %s\n", res.User.Role)
	}
	if cred != nil && !cred.SavedAt.IsZero() {
		fmt.Printf("Signed in %s\n", humanize.Time(cred.SavedAt))
	}
	return nil
}
