package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"digitalbank-console/core"
)

var verbose bool

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "bankctl",
		Short: "Command-line client for the digital banking back-end",
		Long: `bankctl signs in against the digital banking REST API and keeps the
credential in the configured token store, so later commands run as that user.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stdout and the log file")

	rootCmd.AddCommand(
		loginCmd(),
		logoutCmd(),
		registerCmd(),
		passwdCmd(),
		whoamiCmd(),
		profileCmd(),
		statusCmd(),
		customersCmd(),
		accountsCmd(),
		opsCmd(),
		dashboardCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", core.UserMessage(err, err.Error()))
		os.Exit(1)
	}
}

// openSession loads config, opens the token store and builds the session core.
// The returned func releases the log file and the store.
func openSession(ctx context.Context) (*core.Session, func(), error) {
	cfg := core.Load()

	var (
		logger    *zap.Logger
		closeLogs func()
	)
	if verbose {
		l, closer, err := core.SetupLogging(cfg, "bankctl.log")
		if err != nil {
			return nil, nil, err
		}
		logger = l
		closeLogs = func() { _ = closer.Close() }
	} else {
		zcfg := zap.NewDevelopmentConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		zcfg.OutputPaths = []string{"stderr"}
		l, err := zcfg.Build()
		if err != nil {
			return nil, nil, err
		}
		logger = l
		closeLogs = func() { _ = l.Sync() }
	}

	kv, err := core.OpenKV(ctx, cfg)
	if err != nil {
		closeLogs()
		return nil, nil, fmt.Errorf("open token store: %w", err)
	}
	sess := core.NewSession(ctx, core.SessionOptions{Config: cfg, KV: kv, Logger: logger})
	return sess, func() {
		if kv != nil {
			_ = kv.Close()
		}
		closeLogs()
	}, nil
}

// withSession runs fn against a freshly opened session.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, sess *core.Session) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, done, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer done()
	return fn(ctx, sess)
}

// requireLogin applies the same guard the console pages use.
func requireLogin(sess *core.Session) error {
	if !core.Authenticated(sess.State) {
		return &core.AuthError{Kind: core.KindUnauthorized, Message: "Not logged in. Run `bankctl login` first."}
	}
	return nil
}

func requireAdmin(sess *core.Session) error {
	if err := requireLogin(sess); err != nil {
		return err
	}
	if !core.Authorized(sess.State, core.RoleAdmin) {
		return &core.AuthError{Kind: core.KindUnauthorized, Message: "This command requires the ADMIN role."}
	}
	return nil
}

// prompter asks for secrets on behalf of one command. On a terminal the
// input is read with echo off; piped input is consumed line by line from a
// single reader so later prompts see the remaining lines.
type prompter struct {
	out   io.Writer
	fd    int
	tty   bool
	lines *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	p := &prompter{out: cmd.ErrOrStderr()}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
		return p
	}
	p.lines = bufio.NewReader(in)
	return p
}

// secret returns value, or prompts for it when empty.
func (p *prompter) secret(prompt, value string) (string, error) {
	if value != "" {
		return value, nil
	}
	fmt.Fprint(p.out, prompt+": ")
	if p.tty {
		b, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(prompt), err)
		}
		return string(b), nil
	}
	line, err := p.lines.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(prompt), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
