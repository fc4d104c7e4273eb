// Command feelactl exercises the Feela response engine from a terminal.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/feela-app/feela/backend/internal/analysis/mood"
	"github.com/feela-app/feela/backend/internal/config"
	"github.com/feela-app/feela/backend/internal/logger"
	"github.com/feela-app/feela/backend/internal/model/persona"
	"github.com/feela-app/feela/backend/internal/service/ai"
	"github.com/feela-app/feela/backend/internal/service/companion"
)

type options struct {
	rulesFile string
	seed      uint64
	offline   bool
	logLevel  string
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "feelactl",
		Short:         "Talk to the Feela response engine without the HTTP server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.rulesFile, "rules", os.Getenv("FEELA_RULES_FILE"), "rule table YAML (defaults to the embedded table)")
	root.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "seed reply selection for reproducible output (0 = random)")
	root.PersistentFlags().BoolVar(&opts.offline, "offline", false, "never call the language model")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		&cobra.Command{
			Use:   "classify <text>",
			Short: "Print the mood detected in text",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				rules, err := mood.Load(opts.rulesFile)
				if err != nil {
					return err
				}
				text := strings.Join(args, " ")
				fmt.Fprintf(cmd.OutOrStdout(), "mood=%s greeting=%t thanks=%t\n",
					rules.Classify(text), rules.IsGreeting(text), rules.IsThanks(text))
				return nil
			},
		},
		&cobra.Command{
			Use:   "ask <text>",
			Short: "Print Feela's reply to a single message",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				engine, cleanup, err := buildEngine(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer cleanup()

				reply := engine.Generate(cmd.Context(), strings.Join(args, " "))
				printReply(cmd.OutOrStdout(), reply)
				return nil
			},
		},
		&cobra.Command{
			Use:   "chat",
			Short: "Start an interactive conversation (type exit to quit)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				engine, cleanup, err := buildEngine(cmd.Context(), opts)
				if err != nil {
					return err
				}
				defer cleanup()

				return repl(cmd.Context(), engine, cmd.InOrStdin(), cmd.OutOrStdout())
			},
		},
	)
	return root
}

func buildEngine(ctx context.Context, opts *options) (*companion.Engine, func(), error) {
	zl, err := logger.New(opts.logLevel)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = logger.Sync(zl) }

	rules, err := mood.Load(opts.rulesFile)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	engineOpts := []companion.Option{companion.WithLogger(zl)}
	if opts.seed != 0 {
		engineOpts = append(engineOpts, companion.WithRandom(companion.NewRandom(opts.seed)))
	}

	if !opts.offline {
		cfg, err := config.Load()
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load configuration (use --offline to skip the model): %w", err)
		}
		svc, err := ai.NewService(ctx, persona.NewMemoryStore(persona.Seed()), persona.FeelaID, cfg.AI, zl)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		zl.Debug("model enabled", zap.String("provider", cfg.AI.Provider))
		engineOpts = append(engineOpts, companion.WithModel(svc), companion.WithTimeout(cfg.AI.Timeout))
	}

	return companion.NewEngine(rules, engineOpts...), cleanup, nil
}

func repl(ctx context.Context, engine *companion.Engine, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, persona.Seed()[0].Welcome("friend"))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		text := scanner.Text()
		switch strings.ToLower(strings.TrimSpace(text)) {
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case "":
			continue
		}

		printReply(out, engine.Generate(ctx, text))
	}
}

func printReply(out io.Writer, reply companion.Reply) {
	if reply.Mood != "" {
		fmt.Fprintf(out, "Feela [%s/%s]: %s\n", reply.Kind, reply.Mood, reply.Text)
		return
	}
	fmt.Fprintf(out, "Feela [%s]: %s\n", reply.Kind, reply.Text)
}
