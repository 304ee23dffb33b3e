package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/ClarityRoom/internal/catalog"
	"github.com/BTreeMap/ClarityRoom/internal/flow"
	"github.com/BTreeMap/ClarityRoom/internal/genai"
	"github.com/BTreeMap/ClarityRoom/internal/models"
	"github.com/BTreeMap/ClarityRoom/internal/sentiment"
	"github.com/BTreeMap/ClarityRoom/internal/store"
	"github.com/BTreeMap/ClarityRoom/internal/util"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	dbPath  string
	backend string
	model   string
	seed    uint64
	verbose bool
}

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	home, _ := os.UserHomeDir()
	defaultDB := filepath.Join(home, ".clarityroom", "clarityroom.db")

	rootCmd := &cobra.Command{
		Use:          "clarity",
		Short:        "Mood-guided journaling in the terminal",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", defaultDB, "journal database: SQLite path, Postgres URL or :memory:")
	rootCmd.PersistentFlags().StringVar(&opts.backend, "backend", "lexicon", "sentiment backend: lexicon or openai")
	rootCmd.PersistentFlags().StringVar(&opts.model, "model", genai.DefaultModel, "OpenAI model for the openai backend")
	rootCmd.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "seed for prompt selection (0 picks a random seed)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")

	rootCmd.AddCommand(moodsCmd())
	rootCmd.AddCommand(promptsCmd(opts))
	rootCmd.AddCommand(reflectCmd(opts))
	rootCmd.AddCommand(historyCmd(opts))
	return rootCmd
}

func openStore(opts *rootOptions) (store.Store, error) {
	if store.DetectDSNType(opts.dbPath) == store.DSNTypeSQLite {
		if err := os.MkdirAll(filepath.Dir(opts.dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	return store.New(opts.dbPath)
}

func newSelector(opts *rootOptions) *catalog.Selector {
	if opts.seed == 0 {
		return catalog.NewSelector(nil)
	}
	return catalog.NewSeededSelector(opts.seed)
}

func newAnalyzer(opts *rootOptions) (sentiment.Analyzer, error) {
	switch strings.ToLower(opts.backend) {
	case "lexicon":
		return sentiment.NewLexiconAnalyzer(), nil
	case "openai":
		return genai.NewClient(genai.WithModel(opts.model))
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.backend)
	}
}

func moodsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "moods",
		Short: "List the moods and their prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)
			themes := catalog.Themes()
			for _, mood := range catalog.Moods() {
				th := themes[mood]
				bold.Fprintf(out, "%s %s", th.Emoji, th.Label)
				fmt.Fprintf(out, " (%s)\n", th.Mood)
				for _, p := range th.Prompts {
					fmt.Fprintf(out, "  - %s\n", p)
				}
			}
			return nil
		},
	}
}

func promptsCmd(opts *rootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:     "prompts <mood>",
		Short:   "Draw reflection prompts for a mood",
		Args:    cobra.ExactArgs(1),
		Example: "clarity prompts anxious --count 3",
		RunE: func(cmd *cobra.Command, args []string) error {
			mood, err := models.ParseMood(args[0])
			if err != nil {
				return err
			}
			prompts, err := newSelector(opts).Select(mood, count)
			if err != nil {
				return err
			}
			printPrompts(cmd.OutOrStdout(), prompts)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", flow.DefaultPromptCount, "number of prompts")
	return cmd
}

func reflectCmd(opts *rootOptions) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "reflect <mood> [text...]",
		Short: "Run one journaling session and save the entry",
		Long: "Pick a mood, show prompts, then score the entry and show feedback.\n" +
			"The entry is read from the remaining arguments, or from stdin when none are given.",
		Example: `clarity reflect happy "A long walk by the river cleared my head."
echo "Too many deadlines this week" | clarity reflect anxious`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mood, err := models.ParseMood(args[0])
			if err != nil {
				return err
			}
			analyzer, err := newAnalyzer(opts)
			if err != nil {
				return err
			}
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			controller := flow.NewController(analyzer,
				flow.WithSelector(newSelector(opts)),
				flow.WithPromptCount(count),
				flow.WithRecorder(st),
			)

			out := cmd.OutOrStdout()
			sess := models.NewSession(util.GenerateSessionID(), time.Now())
			if sess, err = controller.Pick(sess, mood); err != nil {
				return err
			}
			if sess, err = controller.Generate(sess); err != nil {
				return err
			}
			th, _ := catalog.Lookup(mood)
			color.New(color.Bold).Fprintf(out, "%s %s\n", th.Emoji, th.Label)
			printPrompts(out, sess.Prompts)

			text := strings.Join(args[1:], " ")
			if text == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read entry: %w", err)
				}
				text = string(data)
			}

			sess, err = controller.Submit(cmd.Context(), sess, text)
			var ve *models.ValidationError
			if errors.As(err, &ve) {
				return errors.New(ve.Warning)
			}
			if err != nil {
				return err
			}
			printReflection(out, *sess.Result)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", flow.DefaultPromptCount, "number of prompts")
	return cmd
}

func historyCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show saved journal entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.ListEntries(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entries yet.")
				return nil
			}
			for _, e := range entries {
				th, _ := catalog.Lookup(e.Mood)
				fmt.Fprintf(out, "%s  %s %-8s ", e.CreatedAt.Local().Format("2006-01-02 15:04"), th.Emoji, th.Label)
				bandColor(e.Band).Fprintf(out, "%-8s", e.Band)
				fmt.Fprintf(out, " %s\n", truncate(e.Text, 60))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "entries to show (0 for all)")
	return cmd
}

func printPrompts(out io.Writer, prompts []string) {
	for i, p := range prompts {
		fmt.Fprintf(out, "  %d. %s\n", i+1, p)
	}
}

func printReflection(out io.Writer, r models.Reflection) {
	fmt.Fprintln(out)
	fmt.Fprint(out, "Sentiment: ")
	bandColor(r.Band).Fprint(out, r.Band)
	fmt.Fprintf(out, " (polarity %.2f, subjectivity %.2f)\n", r.Sentiment.Polarity, r.Sentiment.Subjectivity)
	fmt.Fprintln(out, r.Feedback)
}

func bandColor(b models.Band) *color.Color {
	switch b {
	case models.BandPositive:
		return color.New(color.FgGreen, color.Bold)
	case models.BandNegative:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
