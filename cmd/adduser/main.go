// Command adduser registers a user from the terminal, prompting for the
// password without echo. Intended for seeding the first account.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/simpleauth/internal/server/config"
	"github.com/dmitrijs2005/simpleauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/simpleauth/internal/server/services"
	"golang.org/x/term"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		userName  = flag.String("username", "", "login name")
		email     = flag.String("email", "", "email address")
		firstName = flag.String("first", "", "first name")
		lastName  = flag.String("last", "", "last name")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	user, err := services.NewUserService(db, m).Create(ctx, &services.UserCreateModel{
		UserName:  *userName,
		Email:     *email,
		FirstName: *firstName,
		LastName:  *lastName,
		Password:  string(password),
	})
	if err != nil {
		return err
	}

	fmt.Printf("created user %s (%s)\n", user.UserName, user.ID)
	return nil
}
