package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"reportvoice/core"
	"reportvoice/factories"
	"reportvoice/store"
)

var (
	settingsPath string
	envFile      string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "reportvoice",
	Short: "Ask spoken questions about a medical report",
	Long: `reportvoice extracts the text of a medical report image with OCR and
answers spoken questions about it, replying with text and synthesized speech.

Commands:
  serve    - HTTP API with a per-session WebSocket event stream
  analyze  - ingest a report image into a session
  ask      - ask a recorded question against a session`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(envFile); err != nil {
			core.GetLogger().With(map[string]any{"error": err}).Debug("No env file found or failed to load")
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, keys := loadSettings()
		return runServe(cmd.Context(), settings, keys)
	},
}

var analyzeSession string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <image>",
	Short: "Extract a report image into a session",
	Long: `Runs OCR over the image and stores the text in a session of the SQLite
store, printing the session id to use with "ask".

Examples:
  reportvoice analyze report.jpg
  reportvoice analyze page2.png --session 5f1c...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, keys := loadSettings()
		return runAnalyze(cmd.Context(), settings, keys, args[0], analyzeSession, cmd.OutOrStdout())
	},
}

var askOutput string

var askCmd = &cobra.Command{
	Use:   "ask <session> <audio>",
	Short: "Ask a recorded question about a session's report",
	Long: `Transcribes the recording, answers it from the session's report and
prints the reply. The spoken reply is written to --out when given.

Examples:
  reportvoice ask 5f1c... question.wav --out reply.mp3`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, keys := loadSettings()
		return runAsk(cmd.Context(), settings, keys, args[0], args[1], askOutput, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", getEnv("SETTINGS_PATH", "./settings.json"), "settings file (.json or .yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env.local", "dotenv file with API keys")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	analyzeCmd.Flags().StringVar(&analyzeSession, "session", "", "overwrite the report of an existing session")
	askCmd.Flags().StringVarP(&askOutput, "out", "o", "", "write the spoken reply to this file")

	rootCmd.AddCommand(serveCmd, analyzeCmd, askCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Error("command failed")
		os.Exit(1)
	}
}

// loadSettings loads SettingsConfig from file and API keys from env vars, then configures the logger.
func loadSettings() (factories.SettingsConfig, factories.APIKeys) {
	settings, err := factories.SettingsConfigFromFile(settingsPath)
	if err != nil {
		core.GetLogger().With(map[string]any{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
		settings = factories.DefaultSettingsConfig()
	}
	if logLevel != "" {
		settings.Logging.Level = logLevel
	}
	configureLogger(settings.Logging)

	apiKeys := factories.APIKeys{
		Google:     getEnv("GOOGLE_API_KEY", ""),
		Deepgram:   getEnv("DEEPGRAM_API_KEY", ""),
		OpenAI:     getEnv("OPENAI_API_KEY", ""),
		Groq:       getEnv("GROQ_API_KEY", ""),
		Together:   getEnv("TOGETHER_API_KEY", ""),
		OpenRouter: getEnv("OPENROUTER_API_KEY", ""),
		Mistral:    getEnv("MISTRAL_API_KEY", ""),
	}
	return settings, apiKeys
}

func configureLogger(cfg factories.LoggingConfig) {
	level := core.ParseLevel(cfg.Level)
	var logger *core.Logger
	if cfg.Format == "json" {
		logger = core.NewJSONLogger(level)
	} else {
		logger = core.NewDevelopmentLogger()
		logger.SetLevel(level)
	}
	core.SetLogger(logger)
}

func runServe(ctx context.Context, settings factories.SettingsConfig, keys factories.APIKeys) error {
	logger := core.GetLogger().With(map[string]any{"component": "serve"})
	pipeline, err := factories.NewPipeline(settings, keys, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer pipeline.Close()

	err = pipeline.Serve(ctx)
	logger.Info("Shutting down...")
	return err
}

// cliSettings forces a persistent store so sessions outlive one invocation.
func cliSettings(settings factories.SettingsConfig) factories.SettingsConfig {
	if settings.Store.SQLiteConfig == nil {
		cfg := store.DefaultSQLiteConfig()
		cfg.Path = getEnv("REPORTS_DB", cfg.Path)
		settings.Store = factories.StoreFactoryConfig{SQLiteConfig: &cfg}
	}
	settings.Transport.Events = nil
	return settings
}

func runAnalyze(ctx context.Context, settings factories.SettingsConfig, keys factories.APIKeys, imagePath, sessionID string, out io.Writer) error {
	image, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	pipeline, err := factories.NewPipeline(cliSettings(settings), keys, nil)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer pipeline.Close()

	status := pipeline.Handlers().Ingest.Ingest(ctx, sessionID, image)
	fmt.Fprintln(out, status.Message)
	if !status.OK() {
		return fmt.Errorf("analyze: %s", status.Code)
	}
	fmt.Fprintf(out, "session: %s\n", status.SessionID)
	return nil
}

func runAsk(ctx context.Context, settings factories.SettingsConfig, keys factories.APIKeys, sessionID, audioPath, outPath string, out io.Writer) error {
	recording, err := os.ReadFile(audioPath)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	pipeline, err := factories.NewPipeline(cliSettings(settings), keys, nil)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer pipeline.Close()

	resp := pipeline.Handlers().Exchange.Ask(ctx, sessionID, recording)
	defer resp.Audio.Release()

	fmt.Fprintln(out, resp.Reply)
	if resp.Audio != nil && outPath != "" {
		if err := copyFile(resp.Audio.Path, outPath); err != nil {
			return fmt.Errorf("write reply audio: %w", err)
		}
		fmt.Fprintf(out, "audio: %s\n", outPath)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, in); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
