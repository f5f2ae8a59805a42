package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/me/blogfront/internal/forms"
	"github.com/me/blogfront/internal/logging"
)

func newRegisterCmd(a *app) *cobra.Command {
	var username, password, confirm string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var err error
			if username, err = a.valueOrAsk(username, flags.Changed("username"), "Username: "); err != nil {
				return err
			}
			if password, err = a.valueOrAsk(password, flags.Changed("password"), "Password: "); err != nil {
				return err
			}
			switch {
			case flags.Changed("confirm-password"):
			case flags.Changed("password"):
				confirm = password
			default:
				if confirm, err = a.ask("Confirm password: "); err != nil {
					return err
				}
			}

			state, err := a.account.Register(cmd.Context(), forms.RegisterForm{
				Username:        username,
				Password:        password,
				ConfirmPassword: confirm,
			})
			if err != nil {
				return err
			}
			a.message("Registration successful! Logged in as %s.", state.User.Username)
			return a.render(a.identity(), func(io.Writer) {})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted if omitted)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password, at least 6 characters (prompted if omitted)")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "Password confirmation (defaults to --password)")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var err error
			if username, err = a.valueOrAsk(username, flags.Changed("username"), "Username: "); err != nil {
				return err
			}
			if password, err = a.valueOrAsk(password, flags.Changed("password"), "Password: "); err != nil {
				return err
			}

			state, err := a.account.Login(cmd.Context(), forms.LoginForm{Username: username, Password: password})
			if err != nil {
				return err
			}
			a.message("Login successful!")
			a.message("Logged in as %s.", state.User.Username)
			if !a.session.Persistent() {
				a.message("Note: the session could not be saved and ends with this command.")
			}
			return a.render(a.identity(), func(io.Writer) {})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (prompted if omitted)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted if omitted)")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			was := a.session.State()
			a.account.Logout()
			if was.IsAuthenticated {
				a.message("Logged out %s.", was.User.Username)
			} else {
				a.message("Not logged in.")
			}
			return a.render(a.identity(), func(io.Writer) {})
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.identity()
			return a.render(id, func(w io.Writer) {
				if !id.Authenticated {
					fmt.Fprintln(w, "Not logged in.")
					return
				}
				fmt.Fprintf(w, "Username: %s\n", id.Username)
				fmt.Fprintf(w, "User ID:  %d\n", id.UserID)
				fmt.Fprintf(w, "Token:    %s\n", id.Token)
				if id.ExpiresAt != nil {
					note := ""
					if id.Expired {
						note = " (expired, log in again)"
					}
					fmt.Fprintf(w, "Expires:  %s%s\n", humanize.Time(*id.ExpiresAt), note)
				}
				fmt.Fprintf(w, "Server:   %s\n", id.Server)
				fmt.Fprintf(w, "Session:  %s\n", id.Storage)
			})
		},
	}
}

// identity is the structured form of the session shown to the user. The
// token is always redacted.
type identity struct {
	Authenticated bool       `json:"authenticated" yaml:"authenticated"`
	Username      string     `json:"username,omitempty" yaml:"username,omitempty"`
	UserID        int64      `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	Token         string     `json:"token,omitempty" yaml:"token,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired       bool       `json:"expired,omitempty" yaml:"expired,omitempty"`
	Server        string     `json:"server" yaml:"server"`
	Storage       string     `json:"storage" yaml:"storage"`
}

func (a *app) identity() identity {
	state := a.session.State()
	id := identity{
		Authenticated: state.IsAuthenticated,
		Server:        a.cfg.APIURL,
		Storage:       a.cfg.SessionBackend,
	}
	if !a.session.Persistent() {
		id.Storage = "memory only"
	}
	if !state.IsAuthenticated {
		return id
	}
	id.Username = state.User.Username
	id.UserID = state.User.ID
	id.Token = logging.Redact(state.Token)

	// The signature cannot be checked here; the claims are informational.
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(state.Token, claims); err != nil {
		a.log().Debug("token is not a readable JWT", "error", err)
		return id
	}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		id.ExpiresAt = &exp
		id.Expired = time.Now().After(exp)
	}
	return id
}
