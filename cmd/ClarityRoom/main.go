package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/api"
	"github.com/BTreeMap/ClarityRoom/internal/catalog"
	"github.com/BTreeMap/ClarityRoom/internal/flow"
	"github.com/BTreeMap/ClarityRoom/internal/genai"
	"github.com/BTreeMap/ClarityRoom/internal/lockfile"
	"github.com/BTreeMap/ClarityRoom/internal/messaging"
	"github.com/BTreeMap/ClarityRoom/internal/scheduler"
	"github.com/BTreeMap/ClarityRoom/internal/sentiment"
	"github.com/BTreeMap/ClarityRoom/internal/store"
	"github.com/BTreeMap/ClarityRoom/internal/twiliowhatsapp"
	"github.com/BTreeMap/ClarityRoom/internal/util"
	"github.com/BTreeMap/ClarityRoom/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Clarity Room state data
	DefaultStateDir = "/var/lib/clarityroom"
	// DefaultDBFileName is the default SQLite journal database filename
	DefaultDBFileName = "clarityroom.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow device store filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

// Sentiment backends and messaging channels selectable at startup.
const (
	BackendLexicon = "lexicon"
	BackendOpenAI  = "openai"

	ChannelNone     = "none"
	ChannelTwilio   = "twilio"
	ChannelWhatsApp = "whatsapp"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Invalid command line", "error", err)
		os.Exit(2)
	}

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := run(ctx, flags)
	stop()
	lock.Release()

	if runErr != nil {
		slog.Error("Clarity Room failed to run", "error", runErr)
		os.Exit(1)
	}
	slog.Info("Clarity Room exited successfully")
}

// run wires the modules together and serves until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	slog.Info("Bootstrapping Clarity Room with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_type", store.DetectDSNType(*flags.dbDSN), "api_addr", *flags.apiAddr,
		"sentiment", *flags.sentiment, "channel", *flags.channel)

	if err := validatePromptCount(*flags.promptCount); err != nil {
		return err
	}

	st, err := store.New(*flags.dbDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("Failed to close store", "error", err)
		}
	}()

	analyzer, err := buildAnalyzer(flags)
	if err != nil {
		return err
	}
	controller := flow.NewController(analyzer, buildFlowOptions(flags, st)...)

	msgService, err := buildMessagingService(ctx, flags)
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler()
	defer sched.Stop()

	server := api.NewServer(controller, flow.NewSessionManager(), msgService, sched, st, buildAPIOptions(flags)...)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	StateDir     string
	DatabaseDSN  string
	WhatsAppDSN  string
	APIAddr      string
	Sentiment    string
	OpenAIKey    string
	OpenAIModel  string
	OpenAIDebug  bool
	PromptCount  int
	AutoGenerate bool
	Channel      string
	SessionIdle  time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	whatsappDSN  *string
	apiAddr      *string
	sentiment    *string
	openaiKey    *string
	openaiModel  *string
	openaiDebug  *bool
	promptCount  *int
	autoGenerate *bool
	channel      *string
	sessionIdle  *time.Duration
	qrOutput     *string
	numeric      *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:     os.Getenv("CLARITY_STATE_DIR"),
		DatabaseDSN:  os.Getenv("DATABASE_URL"),
		WhatsAppDSN:  os.Getenv("WHATSAPP_DB_DSN"),
		APIAddr:      os.Getenv("API_ADDR"),
		Sentiment:    os.Getenv("SENTIMENT_BACKEND"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  os.Getenv("OPENAI_MODEL"),
		OpenAIDebug:  util.ParseBoolEnv("OPENAI_DEBUG", false),
		PromptCount:  util.ParseIntEnv("PROMPT_COUNT", flow.DefaultPromptCount),
		AutoGenerate: util.ParseBoolEnv("AUTO_GENERATE_PROMPTS", false),
		Channel:      os.Getenv("MESSAGING_CHANNEL"),
		SessionIdle:  util.ParseDurationEnv("SESSION_IDLE_TIMEOUT", api.DefaultSessionIdleTimeout),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CLARITY_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}
	if config.Sentiment == "" {
		config.Sentiment = BackendLexicon
	}
	if config.OpenAIModel == "" {
		config.OpenAIModel = genai.DefaultModel
	}
	if config.Channel == "" {
		config.Channel = ChannelNone
	}

	slog.Debug("environment variables loaded",
		"CLARITY_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"WHATSAPP_DB_DSN_SET", os.Getenv("WHATSAPP_DB_DSN") != "",
		"API_ADDR", config.APIAddr,
		"SENTIMENT_BACKEND", config.Sentiment,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"PROMPT_COUNT", config.PromptCount,
		"MESSAGING_CHANNEL", config.Channel,
		"SESSION_IDLE_TIMEOUT", config.SessionIdle)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		stateDir:     fs.String("state-dir", config.StateDir, "state directory for Clarity Room data (overrides $CLARITY_STATE_DIR)"),
		dbDSN:        fs.String("db-dsn", config.DatabaseDSN, "journal store DSN: SQLite path, Postgres URL or :memory: (overrides $DATABASE_URL)"),
		whatsappDSN:  fs.String("whatsapp-dsn", config.WhatsAppDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)"),
		apiAddr:      fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sentiment:    fs.String("sentiment", config.Sentiment, "sentiment backend: lexicon or openai (overrides $SENTIMENT_BACKEND)"),
		openaiKey:    fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:  fs.String("openai-model", config.OpenAIModel, "OpenAI model (overrides $OPENAI_MODEL)"),
		openaiDebug:  fs.Bool("openai-debug", config.OpenAIDebug, "write scoring debug records under <state-dir>/debug (overrides $OPENAI_DEBUG)"),
		promptCount:  fs.Int("prompt-count", config.PromptCount, "prompts shown per generation (overrides $PROMPT_COUNT)"),
		autoGenerate: fs.Bool("auto-generate", config.AutoGenerate, "generate prompts as soon as a mood is picked (overrides $AUTO_GENERATE_PROMPTS)"),
		channel:      fs.String("channel", config.Channel, "messaging channel: none, twilio or whatsapp (overrides $MESSAGING_CHANNEL)"),
		sessionIdle:  fs.Duration("session-idle", config.SessionIdle, "drop sessions idle for longer than this (overrides $SESSION_IDLE_TIMEOUT)"),
		qrOutput:     fs.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:      fs.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
	}

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"sentiment", *flags.sentiment,
		"openaiKeySet", *flags.openaiKey != "",
		"promptCount", *flags.promptCount,
		"autoGenerate", *flags.autoGenerate,
		"channel", *flags.channel,
		"sessionIdle", *flags.sessionIdle)

	// Follow -state-dir for file defaults that were not set explicitly.
	if *flags.stateDir != config.StateDir {
		if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) {
			*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
			slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
		}
		if *flags.whatsappDSN == filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) {
			*flags.whatsappDSN = filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName)
		}
	}

	*flags.sentiment = strings.ToLower(strings.TrimSpace(*flags.sentiment))
	*flags.channel = strings.ToLower(strings.TrimSpace(*flags.channel))
	return flags, nil
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{*flags.stateDir}
	if store.DetectDSNType(*flags.dbDSN) == store.DSNTypeSQLite {
		dirs = append(dirs, filepath.Dir(*flags.dbDSN))
	}
	for _, dir := range dirs {
		slog.Debug("Creating state directory", "dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "dir", dir)
			return err
		}
	}
	return nil
}

// buildAnalyzer constructs the configured sentiment collaborator
func buildAnalyzer(flags Flags) (sentiment.Analyzer, error) {
	switch *flags.sentiment {
	case BackendLexicon:
		slog.Debug("Using lexicon sentiment analyzer")
		return sentiment.NewLexiconAnalyzer(), nil
	case BackendOpenAI:
		client, err := genai.NewClient(buildGenAIOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI sentiment client: %w", err)
		}
		slog.Debug("Using OpenAI sentiment analyzer", "model", *flags.openaiModel)
		return client, nil
	default:
		return nil, fmt.Errorf("unknown sentiment backend %q (want %s or %s)", *flags.sentiment, BackendLexicon, BackendOpenAI)
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	if *flags.openaiDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true, *flags.stateDir))
	}
	return genaiOpts
}

// validatePromptCount rejects a prompt count that some mood's catalog cannot
// satisfy. Zero or negative keeps the default.
func validatePromptCount(n int) error {
	if n <= 0 {
		return nil
	}
	for mood, th := range catalog.Themes() {
		if n > len(th.Prompts) {
			return fmt.Errorf("prompt count %d exceeds the %d prompts available for mood %q", n, len(th.Prompts), mood)
		}
	}
	return nil
}

// buildFlowOptions constructs journaling flow options
func buildFlowOptions(flags Flags, recorder flow.Recorder) []flow.Option {
	opts := []flow.Option{flow.WithRecorder(recorder)}
	if *flags.promptCount > 0 {
		opts = append(opts, flow.WithPromptCount(*flags.promptCount))
	}
	if *flags.autoGenerate {
		opts = append(opts, flow.WithAutoGenerate(true))
	}
	return opts
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsappDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDSN))
	}
	return waOpts
}

// buildMessagingService connects the configured outbound channel. A nil
// service means sharing and reminders are disabled.
func buildMessagingService(ctx context.Context, flags Flags) (messaging.Service, error) {
	switch *flags.channel {
	case ChannelNone:
		slog.Info("No messaging channel configured; sharing and reminders disabled")
		return nil, nil
	case ChannelTwilio:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), nil
	case ChannelWhatsApp:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(flags)...)
		if err != nil {
			return nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		return nil, errors.New("unknown messaging channel " + *flags.channel)
	}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	apiOpts = append(apiOpts, api.WithSessionIdleTimeout(*flags.sessionIdle))
	return apiOpts
}
