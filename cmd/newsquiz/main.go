package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/matthewjhunter/newsquiz"
	"github.com/matthewjhunter/newsquiz/internal/logger"
	"github.com/matthewjhunter/newsquiz/internal/output"
	"github.com/matthewjhunter/newsquiz/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
	logMode      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsquiz",
		Short: "Daily news ingest and AI-generated news quizzes",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "output format: json, text, human (default: json)")
	rootCmd.PersistentFlags().StringVar(&logMode, "log", "dev", "log mode: dev or prod")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(quizzesCmd())
	rootCmd.AddCommand(synthesizeCmd())
	rootCmd.AddCommand(todayCmd())
	rootCmd.AddCommand(addMemberCmd())
	rootCmd.AddCommand(answerCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(rankingCmd())
	rootCmd.AddCommand(cleanupKeywordsCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = "./config/config.yaml"
	}
	loaded, err := storage.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// openEngine builds the engine and formatter shared by every command.
// The returned cleanup waits for background quiz generation before
// closing the store.
func openEngine() (*newsquiz.Engine, *output.Formatter, func(), error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	engine, err := newsquiz.NewEngine(newsquiz.EngineConfig{Config: cfg, Logger: log})
	if err != nil {
		log.Sync()
		return nil, nil, nil, fmt.Errorf("failed to start engine: %w", err)
	}
	cleanup := func() {
		if err := engine.Close(); err != nil {
			log.Error("close failed", "error", err)
		}
		log.Sync()
	}
	return engine, output.NewFormatter(format), cleanup, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daily pipeline once",
		Long: `Plan keywords, search and crawl, score and select today's articles.
Waits for detail and daily quiz generation to finish before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, formatter, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := engine.RunDailyPipeline(cmd.Context())
			if err != nil {
				return err
			}
			engine.Wait()
			return formatter.OutputPipelineResult(result)
		},
	}
}

func quizzesCmd() *cobra.Command {
	var regenerate bool

	cmd := &cobra.Command{
		Use:   "quizzes <item-id>",
		Short: "Show or regenerate the detail quizzes of an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			engine, formatter, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			var quizzes []newsquiz.DetailQuiz
			if regenerate {
				quizzes, err = engine.RegenerateQuizzes(cmd.Context(), id)
			} else {
				quizzes, err = engine.GetItemQuizzes(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			return formatter.OutputQuizzes(quizzes)
		},
	}

	cmd.Flags().BoolVarP(&regenerate, "regenerate", "r", false, "generate fresh quizzes, replacing the stored ones")
	return cmd
}

func synthesizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "synthesize [item-id...]",
		Short: "Write synthetic counterparts and fact quizzes",
		Long:  `With no ids, synthesizes every item stored today.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			engine, formatter, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			var result *newsquiz.SyntheticResult
			if len(ids) == 0 {
				result, err = engine.SynthesizeToday(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				result = engine.SynthesizeBatch(cmd.Context(), ids)
			}
			engine.Wait()
			return formatter.OutputSyntheticResult(result)
		},
	}
}

func todayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's featured item",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, formatter, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			sel, err := engine.GetTodaySelection(cmd.Context())
			if err != nil {
				if newsquiz.IsNotFound(err) {
					formatter.Warning("no item selected for today")
					return nil
				}
				return err
			}
			return formatter.OutputTodaySelection(sel)
		},
	}
}

func addMemberCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <name>",
		Short: "Register a quiz player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			m, err := engine.CreateMember(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created member %d (%s)\n", m.ID, m.Name)
			return nil
		},
	}
}

func answerCmd() *cobra.Command {
	var a newsquiz.Answer

	cmd := &cobra.Command{
		Use:   "answer",
		Short: "Submit an answer to a quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, formatter, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := engine.SubmitAnswer(cmd.Context(), a)
			if err != nil {
				return err
			}
			return formatter.OutputAnswerResult(result)
		},
	}

	cmd.Flags().Int64Var(&a.MemberID, "member", 0, "member id")
	cmd.Flags().Int64Var(&a.QuizID, "quiz", 0, "quiz id")
	cmd.Flags().StringVar(&a.QuizType, "type", "DETAIL", "quiz type: DETAIL, DAILY or FACT")
	cmd.Flags().StringVar(&a.Answer, "answer", "", "OPTION1..OPTION3, or REAL/FAKE for fact quizzes")
	cmd.MarkFlagRequired("member")
	cmd.MarkFlagRequired("quiz")
	cmd.MarkFlagRequired("answer")
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <member-id>",
		Short: "Show a member's answers, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			engine, formatter, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := engine.GetAnswerHistory(cmd.Context(), id)
			if err != nil {
				return err
			}
			return formatter.OutputAnswerHistory(records)
		},
	}
}

func rankingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ranking",
		Short: "Show the members with the most experience",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, formatter, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			members, err := engine.TopMembers(cmd.Context())
			if err != nil {
				return err
			}
			return formatter.OutputRanking(members)
		},
	}
}

func cleanupKeywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-keywords",
		Short: "Delete keyword history past the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, cleanup, err := openEngine()
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := engine.CleanupKeywords(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d keyword records\n", n)
			return nil
		},
	}
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		// the file may not exist yet, so skip the root loader
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = "./config/config.yaml"
			}

			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			data, err := yaml.Marshal(storage.DefaultConfig())
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
