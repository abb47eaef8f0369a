package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg := config.Load()

	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	email := fs.String("email", "", "Email address")
	fullName := fs.String("name", "", "Full name (defaults to the username)")
	role := fs.String("role", string(core.RoleAdmin), "Role: admin or employee")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	kind := fs.String("backend", cfg.DataBackend, "Backend: sqlite, postgres or auto")
	dbPath := fs.String("db", cfg.SQLiteDBPath, "Path to the SQLite database file")
	dbURL := fs.String("database-url", cfg.DatabaseURL, "PostgreSQL connection URL")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" || *email == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> -email <email> [-role admin|employee] [-password <password>] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user, email")
	}
	if *fullName == "" {
		*fullName = *username
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout) // Print newline after password input
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if len(password) > core.MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes", core.MaxPasswordBytes)
	}

	logger := log.New(log.Config{Output: stderr, Level: log.ParseLevel("warn")})
	ctx := context.Background()

	res, err := backend.NewFactory(logger).CreateBackend(ctx, backend.Config{
		Type:         backend.BackendType(strings.ToLower(*kind)),
		SQLiteDBPath: *dbPath,
		DatabaseURL:  *dbURL,
		ProbeTimeout: cfg.ProbeTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer res.Cleanup()
	if res.Kind == backend.MemoryBackend {
		return fmt.Errorf("no database reachable: users added to the memory store would be lost")
	}

	// The command runs with operator rights, so it may create admins.
	operator := &core.User{Role: core.RoleAdmin}
	auth := services.NewAuthService(res.Store, services.AuthConfig{}, logger)
	user, err := auth.Register(ctx, operator, core.Registration{
		Username: *username,
		Email:    *email,
		Password: password,
		FullName: *fullName,
		Role:     core.Role(*role),
	})
	if errors.Is(err, core.ErrConflict) {
		return fmt.Errorf("user %s already exists", *username)
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %d (%s)\n", user.Username, user.ID, user.Role)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
