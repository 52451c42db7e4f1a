package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/octobees/cardscan/internal/config"
	"github.com/octobees/cardscan/internal/contact"
	"github.com/octobees/cardscan/internal/contactstore"
	"github.com/octobees/cardscan/internal/database"
	"github.com/octobees/cardscan/internal/extraction"
	"github.com/octobees/cardscan/internal/logger"
	"github.com/octobees/cardscan/internal/pipeline"
	"github.com/octobees/cardscan/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "capture":
		os.Exit(runCapture(ctx, os.Args[2:], os.Stdout, os.Stderr))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `cardscan turns a business card photo into a saved contact.

Usage:
  cardscan capture -image card.jpg [flags]
  cardscan help

Run "cardscan capture -h" for the capture flags.`)
}

type captureFlags struct {
	imagePath string
	mimeType  string
	store     string
	vcardDir  string
	webhook   string
	provider  string
	persist   bool
	printCard bool
	asJSON    bool
	logLevel  string
}

func parseCaptureFlags(cfg *config.Config, args []string, stderr io.Writer) (captureFlags, error) {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defaultStore := cfg.ContactStore
	if defaultStore == "none" {
		defaultStore = "vcard"
	}

	var f captureFlags
	fs.StringVar(&f.imagePath, "image", "", "Path to the card photo (jpeg, png, webp, heic)")
	fs.StringVar(&f.mimeType, "mime", "", "Image MIME type, sniffed from the file when empty")
	fs.StringVar(&f.store, "store", defaultStore, "Contact store: vcard, http or none (env: CONTACT_STORE)")
	fs.StringVar(&f.vcardDir, "vcard-dir", cfg.VCardDir, "Directory for vCard files (env: VCARD_DIR)")
	fs.StringVar(&f.webhook, "webhook", cfg.ContactWebhook, "Webhook URL for the http store (env: CONTACT_WEBHOOK_URL)")
	fs.StringVar(&f.provider, "provider", cfg.Extraction.Provider, "Extraction provider: openai or gemini (env: EXTRACTION_PROVIDER)")
	fs.BoolVar(&f.persist, "persist", cfg.DatabaseURL != "", "Append the record to the database in DATABASE_URL")
	fs.BoolVar(&f.printCard, "print", false, "Write the contact as a vCard to stdout")
	fs.BoolVar(&f.asJSON, "json", false, "Print the full outcome as JSON")
	fs.StringVar(&f.logLevel, "log-level", cfg.LogLevel, "Log level (env: LOG_LEVEL)")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.imagePath == "" {
		return f, errors.New("capture requires -image")
	}
	if f.persist && cfg.DatabaseURL == "" {
		return f, errors.New("-persist requires DATABASE_URL")
	}
	return f, nil
}

func runCapture(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "config error: %s\n", err)
		return 2
	}

	f, err := parseCaptureFlags(cfg, args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintln(stderr, err)
		}
		return 2
	}

	log := logger.New(f.logLevel, "console", stderr)

	data, err := os.ReadFile(f.imagePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "read image: %s\n", err)
		return 2
	}

	provider, err := extraction.NewProvider(ctx, f.provider,
		extraction.OpenAIConfig{
			APIKey:  cfg.Extraction.OpenAI.APIKey,
			Model:   cfg.Extraction.OpenAI.Model,
			BaseURL: cfg.Extraction.OpenAI.BaseURL,
		},
		extraction.GeminiConfig{
			APIKey:  cfg.Extraction.Gemini.APIKey,
			Model:   cfg.Extraction.Gemini.Model,
			BaseURL: cfg.Extraction.Gemini.BaseURL,
		},
	)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "provider config error: %s\n", err)
		return 2
	}

	contacts, err := contactstore.New(f.store, f.vcardDir, f.webhook, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "contact store config error: %s\n", err)
		return 2
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithTransitionHook(func(cycleID string, from, to pipeline.State) {
			log.Debug().Str("cycle_id", cycleID).Stringer("from", from).Stringer("to", to).Msg("pipeline transition")
		}),
	}
	if f.persist {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
		if err == nil {
			err = database.EnsureSchema(connectCtx, pool)
		}
		cancel()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "database error: %s\n", err)
			return 1
		}
		defer pool.Close()
		opts = append(opts, pipeline.WithRecords(repository.NewPGXRecordsRepository(pool, repository.NewStamper(cfg.Location))))
	}

	extractor := extraction.NewClient(provider,
		extraction.WithPrompt(cfg.Extraction.Prompt),
		extraction.WithTimeout(cfg.Extraction.Timeout),
		extraction.WithLogger(log),
	)
	orchestrator := pipeline.New(extractor, contact.NewMapper(cfg.PhoneRegion), contacts, opts...)

	out, runErr := orchestrator.Run(ctx, extraction.Image{Data: data, MIMEType: f.mimeType})
	if err := report(stdout, out, f, log); err != nil {
		_, _ = fmt.Fprintf(stderr, "write output: %s\n", err)
		return 1
	}
	if runErr != nil {
		log.Error().Err(runErr).Str("cycle_id", out.CycleID).Msg("capture failed")
		return 1
	}
	return 0
}

func report(w io.Writer, out *pipeline.Outcome, f captureFlags, log zerolog.Logger) error {
	if f.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if f.printCard && out.Contact != nil {
		if err := contactstore.EncodeVCard(w, *out.Contact); err != nil {
			return err
		}
	}
	if out.Stored != nil {
		log.Info().Int64("serial_no", out.Stored.SerialNo).Msg("record stored")
	}
	if out.PersistenceError != "" {
		log.Warn().Str("error", out.PersistenceError).Msg("record not stored")
	}
	if f.printCard {
		log.Info().Msg(out.Notice)
		return nil
	}
	_, err := fmt.Fprintln(w, out.Notice)
	return err
}
