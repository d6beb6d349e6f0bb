// Command blogctl runs maintenance tasks against the blog database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"inkwell/internal/app"
	"inkwell/internal/config"
	"inkwell/internal/logging"
	"inkwell/internal/models"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage()
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "migrate":
		return runMigrate(cfg, rest)
	case "set-role":
		return runSetRole(cfg, rest)
	case "import-feed":
		return runImportFeed(cfg, rest)
	}
	printUsage()
	return fmt.Errorf("unknown command %q", cmd)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `blogctl manages an Inkwell installation.

Usage:
  blogctl migrate
  blogctl set-role --email user@example.com --role author --as admin@example.com [--reason text]
  blogctl import-feed --url https://example.com/feed.xml --as admin@example.com

Configuration is read from .env and the environment, like the server.
`)
}

func newFlagSet(name string) (*pflag.FlagSet, *string) {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	logLevel := flagSet.String("log-level", "warn", "log level (debug, info, warn, error)")
	return flagSet, logLevel
}

// runMigrate opens the store, which migrates the schema and seeds the admin.
func runMigrate(cfg *config.Config, args []string) error {
	flagSet, logLevel := newFlagSet("migrate")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	zl := logging.New(os.Stderr, *logLevel)
	defer func() { _ = zl.Sync() }()

	_, closeStore, err := app.OpenStore(context.Background(), cfg, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	fmt.Println("database is up to date")
	return nil
}

func runSetRole(cfg *config.Config, args []string) error {
	var email, role, actorEmail, reason string

	flagSet, logLevel := newFlagSet("set-role")
	flagSet.StringVar(&email, "email", "", "email of the user to change")
	flagSet.StringVar(&role, "role", "", "new role: user, author or admin")
	flagSet.StringVar(&actorEmail, "as", cfg.AdminEmail, "email of the admin making the change")
	flagSet.StringVar(&reason, "reason", "changed with blogctl", "reason recorded in the audit log")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if email == "" || role == "" || actorEmail == "" {
		return errors.New("--email, --role and --as are required")
	}

	zl := logging.New(os.Stderr, *logLevel)
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.Store.GetUserByEmail(ctx, actorEmail)
	if err != nil {
		return fmt.Errorf("load admin %s: %w", actorEmail, err)
	}
	target, err := a.Store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load user %s: %w", email, err)
	}

	user, err := a.Users.ChangeRole(ctx, actor, target.ID, models.Role(strings.ToLower(role)), reason)
	if err != nil {
		return err
	}
	fmt.Printf("%s is now %s\n", user.Email, user.Role)
	return nil
}

func runImportFeed(cfg *config.Config, args []string) error {
	var feedURL, actorEmail string

	flagSet, logLevel := newFlagSet("import-feed")
	flagSet.StringVar(&feedURL, "url", "", "feed URL, rsshub:// routes are expanded")
	flagSet.StringVar(&actorEmail, "as", cfg.AdminEmail, "email of the admin owning the drafts")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if feedURL == "" || actorEmail == "" {
		return errors.New("--url and --as are required")
	}

	zl := logging.New(os.Stderr, *logLevel)
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer a.Close()

	actor, err := a.Store.GetUserByEmail(ctx, actorEmail)
	if err != nil {
		return fmt.Errorf("load admin %s: %w", actorEmail, err)
	}

	result, err := a.Importer.Import(ctx, actor, feedURL)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d created, %d skipped, %d failed\n", result.FeedTitle, result.Created, result.Skipped, result.Failed)
	return nil
}
