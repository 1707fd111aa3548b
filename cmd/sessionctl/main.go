// sessionctl is a command-line front end for the session manager. It signs
// users in and out of the identity backend, inspects the current session and
// mints bearer tokens for scripting against the domain services.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/authapi"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/credstore"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/identity"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/internal/config"
	"github.com/sethnakola1/healthcare-mvp-v2-sub000/session"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// app wires the configuration, backend client, credential store and session
// manager together for the command handlers.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	store   *credstore.FileStore
	manager *session.Manager
}

func newApp(verbose bool) (*app, error) {
	cfg := config.New()

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	backend := authapi.New(cfg.GetBackendBaseURL(),
		authapi.WithTimeout(cfg.GetRequestTimeout()),
		authapi.WithLogger(logger),
	)

	storeOptions := []credstore.FileStoreOption{credstore.WithLogger(logger)}
	if secret := cfg.GetCredentialSecret(); secret != "" {
		storeOptions = append(storeOptions, credstore.WithEncryptionSecret(secret))
	}
	store := credstore.NewFileStore(cfg.GetStateDir(), storeOptions...)
	if store.Degraded() {
		logger.Warn().Str("dir", cfg.GetStateDir()).Msg("credential store degraded, session will not persist")
	}

	manager, err := session.NewManager(backend, store,
		session.WithLogger(logger),
		session.WithRefreshThreshold(cfg.GetRefreshThreshold()),
		session.WithIdleTimeout(cfg.GetIdleTimeout()),
		session.WithLoginRateLimit(rate.Limit(float64(cfg.GetLoginRatePerMinute())/60.0), cfg.GetLoginBurst()),
	)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: store, manager: manager}, nil
}

// resume hydrates the session from persisted credentials. Network failures
// are reported but leave stored credentials in place for a later retry.
func (a *app) resume(ctx context.Context) error {
	if err := a.manager.Initialize(ctx); err != nil {
		if errors.Is(err, session.ErrNetworkTimeout) || errors.Is(err, session.ErrNetworkUnavailable) {
			return fmt.Errorf("backend unreachable at %s", a.cfg.GetBackendBaseURL())
		}
		return errors.New("session expired, please sign in again")
	}
	return nil
}

// userError prefers the session's sanitized lastError over the raw error
// chain so the terminal shows the same message a UI would.
func (a *app) userError(err error) error {
	if errors.Is(err, session.ErrValidation) {
		return err
	}
	if msg := a.manager.Snapshot().LastError; msg != "" {
		return errors.New(msg)
	}
	return err
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "sessionctl",
		Short:         "Manage the healthcare admin session",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(&verbose),
		newRegisterCmd(&verbose),
		newWhoamiCmd(&verbose),
		newTokenCmd(&verbose),
		newLogoutCmd(&verbose),
		newChangePasswordCmd(&verbose),
	)
	return root
}

func newLoginCmd(verbose *bool) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*verbose)
			if err != nil {
				return err
			}
			defer a.manager.Close()
			displayAppname(a.cfg.GetAppName())

			if email == "" {
				email = prompt(cmd, "Email: ")
			}
			if password == "" {
				password = prompt(cmd, "Password: ")
			}

			if err := a.manager.Login(cmd.Context(), email, password); err != nil {
				return a.userError(err)
			}
			printIdentity(cmd, a.manager.Snapshot().Identity)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(verbose *bool) *cobra.Command {
	var reg identity.Registration
	var role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*verbose)
			if err != nil {
				return err
			}
			defer a.manager.Close()
			displayAppname(a.cfg.GetAppName())

			parsed, err := identity.ParseRole(role)
			if err != nil {
				return err
			}
			reg.Role = parsed
			if reg.ConfirmPassword == "" {
				reg.ConfirmPassword = reg.Password
			}

			if err := a.manager.Register(cmd.Context(), reg); err != nil {
				if errors.Is(err, session.ErrRegisteredLoginFailed) {
					cmd.Println("Account created, please sign in with `sessionctl login`")
					return nil
				}
				return a.userError(err)
			}
			printIdentity(cmd, a.manager.Snapshot().Identity)
			return nil
		},
	}
	cmd.Flags().StringVarP(&reg.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone number")
	cmd.Flags().StringVarP(&role, "role", "r", string(identity.RoleReceptionist), "account role")
	return cmd
}

func newWhoamiCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*verbose)
			if err != nil {
				return err
			}
			defer a.manager.Close()

			if err := a.resume(cmd.Context()); err != nil {
				return err
			}
			snap := a.manager.Snapshot()
			if !snap.IsAuthenticated() {
				return errors.New("not signed in")
			}
			printIdentity(cmd, snap.Identity)
			return nil
		},
	}
}

func newTokenCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a fresh access token for scripting",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*verbose)
			if err != nil {
				return err
			}
			defer a.manager.Close()

			if err := a.resume(cmd.Context()); err != nil {
				return err
			}
			token, err := a.manager.EnsureFreshToken(cmd.Context())
			if err != nil {
				return a.userError(err)
			}
			cmd.Println(token)
			return nil
		},
	}
}

func newLogoutCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear persisted credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*verbose)
			if err != nil {
				return err
			}
			defer a.manager.Close()

			// Local teardown always succeeds; the backend notification is
			// best-effort inside the manager.
			_ = a.resume(cmd.Context())
			if err := a.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Signed out")
			return nil
		},
	}
}

func newChangePasswordCmd(verbose *bool) *cobra.Command {
	var current, next string

	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*verbose)
			if err != nil {
				return err
			}
			defer a.manager.Close()

			if err := a.resume(cmd.Context()); err != nil {
				return err
			}
			if current == "" {
				current = prompt(cmd, "Current password: ")
			}
			if next == "" {
				next = prompt(cmd, "New password: ")
			}

			if err := a.manager.ChangePassword(cmd.Context(), current, next); err != nil {
				return a.userError(err)
			}
			cmd.Println("Password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&current, "current", "", "current password (prompted when omitted)")
	cmd.Flags().StringVar(&next, "new", "", "new password (prompted when omitted)")
	return cmd
}

func printIdentity(cmd *cobra.Command, ident *identity.Identity) {
	if ident == nil {
		return
	}
	cmd.Printf("Signed in as %s <%s>\n", ident.FullName(), ident.Email)
	cmd.Printf("Role: %s\n", ident.RoleDisplayName())
	if ident.HospitalID != "" {
		cmd.Printf("Hospital: %s\n", ident.HospitalID)
	}
}

func prompt(cmd *cobra.Command, label string) string {
	cmd.Print(label)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
