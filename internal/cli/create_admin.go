// Package cli implements the command line subcommands.
package cli

import (
	"flag"
	"fmt"
	"os"

	"github.com/kitabu-club/kitabu/internal/auth"
	"github.com/kitabu-club/kitabu/internal/config"
	"github.com/kitabu-club/kitabu/internal/database"
	"github.com/kitabu-club/kitabu/internal/database/profiles"
	"github.com/kitabu-club/kitabu/internal/entities"
)

// CreateAdminCommand provisions an administrator account from the command
// line, for bootstrapping a deployment without going through /signup.
type CreateAdminCommand struct {
	DatabasePath   string
	Username       string
	Email          string
	Password       string
	WhatsAppName   string
	WhatsAppNumber string
}

// NewCreateAdminCommand creates a new CreateAdminCommand
func NewCreateAdminCommand() *CreateAdminCommand {
	return &CreateAdminCommand{}
}

// ParseFlags parses command line flags
func (cmd *CreateAdminCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the application database")
	fs.StringVar(&cmd.Username, "username", "", "Username for the administrator account")
	fs.StringVar(&cmd.Email, "email", "", "Email address for the administrator account")
	fs.StringVar(&cmd.Password, "password", "", "Password (read from KITABU_ADMIN_PASSWORD if not set)")
	fs.StringVar(&cmd.WhatsAppName, "whatsapp-name", "", "Display name members see on WhatsApp")
	fs.StringVar(&cmd.WhatsAppNumber, "whatsapp-number", "", "WhatsApp number in international format, e.g. +255700000001")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s create-admin [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Create an administrator account with a linked member profile.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s create-admin -username admin -email admin@example.com \\\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "      -whatsapp-name 'Asha' -whatsapp-number '+255700000001'\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Password == "" {
		cmd.Password = os.Getenv("KITABU_ADMIN_PASSWORD")
	}

	if cmd.Username == "" || cmd.Email == "" {
		return fmt.Errorf("username and email are required")
	}
	if cmd.Password == "" {
		return fmt.Errorf("password is required (use -password or KITABU_ADMIN_PASSWORD)")
	}
	if cmd.WhatsAppName == "" || cmd.WhatsAppNumber == "" {
		return fmt.Errorf("whatsapp-name and whatsapp-number are required")
	}
	return nil
}

// Run executes the command
func (cmd *CreateAdminCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	cfg := config.NewConfig()
	service := auth.NewService(db.DB, profiles.NewRepository(db.DB), cfg.Auth)

	user, profile, err := service.Signup(auth.SignupInput{
		Username:       cmd.Username,
		Email:          cmd.Email,
		Password:       cmd.Password,
		WhatsAppName:   cmd.WhatsAppName,
		WhatsAppNumber: cmd.WhatsAppNumber,
		Role:           entities.UserRoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create administrator: %w", err)
	}

	fmt.Printf("Created administrator %q (user %d, profile %d)\n", user.Username, user.ID, profile.ID)
	return nil
}
