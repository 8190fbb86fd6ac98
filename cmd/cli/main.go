// Command sd is a CLI client for the simplidoc auth service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/simplidoc/internal/api"
	"github.com/and161185/simplidoc/internal/client/session"
	"github.com/and161185/simplidoc/internal/config"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errNotLoggedIn = errors.New("not logged in (run sd login)")

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd(cfg config.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sd",
		Short:         "simplidoc session client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cfg.Server, "server", cfg.Server, "server base URL")
	cmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "session database path")
	cmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "debug logging to stderr")

	// cfg is captured by pointer so parsed flag values reach the commands.
	c := &cfg
	cmd.AddCommand(
		versionCmd(),
		registerCmd(c),
		loginCmd(c),
		meCmd(c),
		profileCmd(c),
		statusCmd(c),
		logoutCmd(c),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sd %s (%s)\n", version, buildDate)
		},
	}
}

// withClient opens the token store, builds a client and restores any stored
// session before calling fn.
func withClient(cmd *cobra.Command, cfg *config.Client, fn func(context.Context, *session.Client) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := zap.NewNop()
	if cfg.Verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = l
	}
	defer func() { _ = log.Sync() }()

	store, err := session.OpenSQLiteStore(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	c, err := session.New(cfg.Server, store,
		session.WithLogger(log),
		session.WithRequestTimeout(cfg.RequestTimeout),
		session.WithRefreshTimeout(cfg.RefreshTimeout),
	)
	if err != nil {
		return err
	}
	if err := c.Bootstrap(ctx); err != nil {
		log.Debug("restore session", zap.Error(err))
	}
	return fn(ctx, c)
}

func requireSession(c *session.Client) error {
	if !c.State().Authenticated {
		return errNotLoggedIn
	}
	return nil
}

func registerCmd(cfg *config.Client) *cobra.Command {
	var in api.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, cfg, func(ctx context.Context, c *session.Client) error {
				if in.ConfirmPassword == "" {
					in.ConfirmPassword = in.Password
				}
				id, err := c.Register(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), id)
			})
		},
	}
	cmd.Flags().StringVarP(&in.Email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "password")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm", "", "password confirmation (defaults to --password)")
	cmd.Flags().StringVarP(&in.Name, "name", "n", "", "display name")
	return cmd
}

func loginCmd(cfg *config.Client) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, cfg, func(ctx context.Context, c *session.Client) error {
				id, last, err := c.Login(ctx, email, password)
				if err != nil {
					return err
				}
				out := map[string]any{"identity": id}
				if last != nil {
					out["lastLoginAt"] = last
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func meCmd(cfg *config.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, cfg, func(ctx context.Context, c *session.Client) error {
				if err := requireSession(c); err != nil {
					return err
				}
				id, err := c.Me(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), id)
			})
		},
	}
}

func profileCmd(cfg *config.Client) *cobra.Command {
	var (
		name  string
		prefs []string
	)
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update name and preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in api.ProfileRequest
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if len(prefs) > 0 {
				p, err := parsePrefs(prefs)
				if err != nil {
					return err
				}
				in.Preferences = p
			}
			return withClient(cmd, cfg, func(ctx context.Context, c *session.Client) error {
				if err := requireSession(c); err != nil {
					return err
				}
				id, err := c.UpdateProfile(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), id)
			})
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name")
	cmd.Flags().StringArrayVar(&prefs, "pref", nil, "preference key=value (repeatable, value parsed as JSON when possible)")
	return cmd
}

func statusCmd(cfg *config.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, cfg, func(_ context.Context, c *session.Client) error {
				st := c.State()
				return printJSON(cmd.OutOrStdout(), api.StatusResponse{
					Authenticated: st.Authenticated,
					Identity:      st.Identity,
				})
			})
		},
	}
}

func logoutCmd(cfg *config.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, cfg, func(ctx context.Context, c *session.Client) error {
				if err := c.Logout(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return err
			})
		},
	}
}

// parsePrefs turns key=value pairs into a preferences map. Values that parse
// as JSON keep their type; anything else is stored as a string.
func parsePrefs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("bad --pref %q, want key=value", p)
		}
		var val any
		if err := json.Unmarshal([]byte(v), &val); err != nil {
			val = v
		}
		out[strings.TrimSpace(k)] = val
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
