package cli

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ama13/bookshelf/internal/auth"
	"github.com/ama13/bookshelf/internal/config"
	"github.com/ama13/bookshelf/internal/database"
	"github.com/ama13/bookshelf/internal/entities"
)

type CreateUserCommand struct {
	Login        string
	Password     string
	Role         string
	FirstName    string
	LastName     string
	MiddleName   string
	DatabasePath string
}

func NewCreateUserCommand() *CreateUserCommand {
	return &CreateUserCommand{}
}

func (cmd *CreateUserCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ExitOnError)

	fs.StringVar(&cmd.Login, "login", "", "Login for the new account (required)")
	fs.StringVar(&cmd.Password, "password", "", "Password (prompted when omitted)")
	fs.StringVar(&cmd.Role, "role", "member", "Role: admin, moderator or member")
	fs.StringVar(&cmd.FirstName, "first-name", "", "First name (required)")
	fs.StringVar(&cmd.LastName, "last-name", "", "Last name (required)")
	fs.StringVar(&cmd.MiddleName, "middle-name", "", "Middle name")
	fs.StringVar(&cmd.DatabasePath, "db", "", "Path to the database file (defaults to DATABASE_PATH)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-user [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create a user account.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s create-user -login admin -role admin -first-name Anna -last-name Mayer\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Login == "" {
		fs.Usage()
		return fmt.Errorf("login is required")
	}
	if cmd.FirstName == "" || cmd.LastName == "" {
		fs.Usage()
		return fmt.Errorf("first and last name are required")
	}

	switch entities.RoleName(cmd.Role) {
	case entities.RoleAdmin, entities.RoleModerator, entities.RoleMember:
	default:
		return fmt.Errorf("unknown role %q (expected admin, moderator or member)", cmd.Role)
	}

	return nil
}

func (cmd *CreateUserCommand) Run() error {
	cfg := config.NewConfig()
	if cmd.DatabasePath != "" {
		cfg.Database.Path = cmd.DatabasePath
	}

	if cmd.Password == "" {
		fmt.Fprintf(os.Stderr, "Password for %s: ", cmd.Login)
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		cmd.Password = strings.TrimRight(line, "\r\n")
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	service := auth.NewService(db, cfg.Auth)
	user, err := service.CreateUser(cmd.Login, cmd.Password, cmd.FirstName, cmd.LastName, cmd.MiddleName, entities.RoleName(cmd.Role))
	if err != nil {
		return err
	}

	fmt.Printf("Created %s user %q (id %d)\n", cmd.Role, user.Login, user.ID)
	return nil
}
