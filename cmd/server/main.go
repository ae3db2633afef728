package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/reclaim-app/reclaim/internal/ai"
	"github.com/reclaim-app/reclaim/internal/api"
	"github.com/reclaim-app/reclaim/internal/auth"
	"github.com/reclaim-app/reclaim/internal/chat"
	"github.com/reclaim-app/reclaim/internal/config"
	"github.com/reclaim-app/reclaim/internal/db"
	"github.com/reclaim-app/reclaim/internal/geocode"
	"github.com/reclaim-app/reclaim/internal/logging"
	"github.com/reclaim-app/reclaim/internal/media"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: reclaim <init|serve>")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\nUsage: reclaim <init|serve>\n", os.Args[1])
		os.Exit(1)
	}
}

func cmdInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dbPath := fs.String("db", "reclaim.sqlite3", "path to SQLite database file")
	fs.Parse(args)

	if _, err := os.Stat(*dbPath); err == nil {
		fmt.Fprintf(os.Stderr, "Error: database file %s already exists\n", *dbPath)
		os.Exit(1)
	}

	database, password, err := initDatabase(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	database.Close()

	fmt.Printf("Database created: %s\n", *dbPath)
	printAdminCredentials(password)
}

func printAdminCredentials(password string) {
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Super admin account created:")
	fmt.Printf("  Email:    admin@localhost\n")
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password — it cannot be recovered.")
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	cfg := config.Load()

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		database, password, err := initDatabase(cfg.DBPath)
		if err != nil {
			logger.Error("initializing database", "error", err)
			os.Exit(1)
		}
		database.Close()
		fmt.Printf("Database created: %s\n", cfg.DBPath)
		printAdminCredentials(password)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("opening database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		logger.Error("migrating database", "error", err)
		os.Exit(1)
	}

	// The signing secret survives restarts: explicit config wins, otherwise
	// a generated one is persisted in the database.
	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		jwtSecret, err = store.GetJWTSecret(context.Background(), database)
		if err != nil {
			logger.Error("loading JWT secret", "error", err)
			os.Exit(1)
		}
	}

	mediaStore, err := media.NewStore(cfg.UploadDir)
	if err != nil {
		logger.Error("setting up upload storage", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	deps := api.Deps{
		DB:        database,
		JWTSecret: jwtSecret,
		Geocoder:  geocode.NewClient(cfg.NominatimURL),
		Media:     mediaStore,
	}
	if cfg.GoogleClientID != "" {
		deps.Google = auth.NewGoogleVerifier(cfg.GoogleTokenInfoURL, cfg.GoogleClientID)
	}
	if cfg.AnthropicAPIKey != "" {
		deps.Interpreter = ai.NewInterpreter(ai.NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel, ""))
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, AI search degrades to keyword search")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := chat.NewHub(database, logger)
	go hub.Run(ctx)
	deps.Hub = hub

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// initDatabase creates a new database, runs migrations, and creates the
// super admin account.
func initDatabase(path string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(database); err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("running migrations: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	ctx := context.Background()
	_, err = store.CreateUser(ctx, database, "Administrator", "admin@localhost", string(hash), model.RoleSuperAdmin)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("creating super admin: %w", err)
	}

	return database, password, nil
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
