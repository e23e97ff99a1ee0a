package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kitabu-club/kitabu/internal/catalog"
	"github.com/kitabu-club/kitabu/internal/config"
	"github.com/kitabu-club/kitabu/internal/covers"
	"github.com/kitabu-club/kitabu/internal/database"
	booksrepo "github.com/kitabu-club/kitabu/internal/database/books"
	"github.com/kitabu-club/kitabu/internal/storage"
)

// ResolveCoversCommand runs the missing-covers sweep once and exits.
type ResolveCoversCommand struct {
	DatabasePath string
	StorageDir   string
	Timeout      time.Duration
}

// NewResolveCoversCommand creates a new ResolveCoversCommand
func NewResolveCoversCommand() *ResolveCoversCommand {
	return &ResolveCoversCommand{}
}

// ParseFlags parses command line flags
func (cmd *ResolveCoversCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("resolve-covers", flag.ExitOnError)

	fs.StringVar(&cmd.DatabasePath, "db", config.DefaultDatabasePath, "Path to the application database")
	fs.StringVar(&cmd.StorageDir, "storage", config.DefaultStorageDir, "Directory holding book files and covers")
	fs.DurationVar(&cmd.Timeout, "timeout", 30*time.Minute, "Overall deadline for the sweep")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s resolve-covers [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Retry cover resolution for every book without a cover image.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

// Run executes the command
func (cmd *ResolveCoversCommand) Run() error {
	db, err := database.NewDatabase(cmd.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	files, err := storage.NewLocalStore(cmd.StorageDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	cfg := config.NewConfig()
	searcher := covers.NewGoogleBooksClient(cfg.Covers.LookupBaseURL, cfg.Covers.LookupTimeout)

	var renderer covers.PageRenderer
	if popplerRenderer, err := covers.NewPopplerRenderer(); err != nil {
		fmt.Fprintf(os.Stderr, "PDF rendering unavailable: %v\n", err)
	} else {
		renderer = popplerRenderer
	}

	resolver := covers.NewResolver(searcher, renderer, files, cfg.Covers.FetchTimeout, cfg.Covers.RenderDPI)
	service := catalog.NewService(booksrepo.NewRepository(db.DB), files, resolver)

	ctx, cancel := context.WithTimeout(context.Background(), cmd.Timeout)
	defer cancel()

	attached, err := service.ResolveMissingCovers(ctx)
	if err != nil {
		return fmt.Errorf("cover sweep: %w", err)
	}

	fmt.Printf("Attached %d covers\n", attached)
	return nil
}
