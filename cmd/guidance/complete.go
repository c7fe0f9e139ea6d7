package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jxzhangjhu/guidance/pkg/client"
	"github.com/jxzhangjhu/guidance/pkg/config"
	"github.com/jxzhangjhu/guidance/pkg/tracker"
)

func newCompleteCmd(a *app) *cobra.Command {
	var (
		noCache     bool
		strict      bool
		asJSON      bool
		temperature float64
		maxTokens   int
		n           int
		stopSeqs    []string
		topP        float64
		logprobs    int
		echo        bool
		cacheSeed   int
	)

	cmd := &cobra.Command{
		Use:   "complete [prompt]",
		Short: "Generate a completion (prompt from stdin when omitted or \"-\")",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			cfg := *a.cfg
			if noCache {
				cfg.Caching = false
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := a.newClient(ctx, &cfg, strict)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			var opts []client.CallOption
			flags := cmd.Flags()
			if flags.Changed("temperature") {
				opts = append(opts, client.WithTemperature(temperature))
			}
			if flags.Changed("max-tokens") {
				opts = append(opts, client.WithMaxTokens(maxTokens))
			}
			if flags.Changed("n") {
				opts = append(opts, client.WithN(n))
			}
			if len(stopSeqs) > 0 {
				opts = append(opts, client.WithStop(stopSeqs...))
			}
			if flags.Changed("top-p") {
				opts = append(opts, client.WithTopP(topP))
			}
			if flags.Changed("logprobs") {
				opts = append(opts, client.WithLogprobs(logprobs))
			}
			if echo {
				opts = append(opts, client.WithEcho(true))
			}
			if cacheSeed != 0 {
				opts = append(opts, client.WithCacheSeed(cacheSeed))
			}

			resp, err := c.Complete(ctx, prompt, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			for i, choice := range resp.Choices {
				if len(resp.Choices) > 1 {
					fmt.Fprintf(out, "--- choice %d ---\n", i)
				}
				fmt.Fprintln(out, choice.Text)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("model", "", "model identifier")
	flags.String("token", "", "API token, or a path to a file holding it")
	flags.String("endpoint", "", "REST endpoint; the go-openai client is used when empty")
	flags.Bool("chat", false, "use the chat completion protocol")
	_ = a.v.BindPFlag("model", flags.Lookup("model"))
	_ = a.v.BindPFlag("token", flags.Lookup("token"))
	_ = a.v.BindPFlag("endpoint", flags.Lookup("endpoint"))
	_ = a.v.BindPFlag("chat_completion", flags.Lookup("chat"))

	flags.BoolVar(&noCache, "no-cache", false, "skip cache reads (results are still written)")
	flags.BoolVar(&strict, "strict", false, "reject chat prompts with unpaired turn markers")
	flags.BoolVar(&asJSON, "json", false, "print the full response as JSON")
	flags.Float64Var(&temperature, "temperature", 0, "sampling temperature (default from config)")
	flags.IntVar(&maxTokens, "max-tokens", 1000, "maximum completion tokens")
	flags.IntVar(&n, "n", 1, "number of choices")
	flags.StringArrayVar(&stopSeqs, "stop", nil, "stop sequence (repeatable)")
	flags.Float64Var(&topP, "top-p", 1.0, "nucleus sampling")
	flags.IntVar(&logprobs, "logprobs", 0, "return the top n token log probabilities")
	flags.BoolVar(&echo, "echo", false, "echo the prompt in the completion")
	flags.IntVar(&cacheSeed, "cache-seed", 0, "separate otherwise identical cached calls")
	return cmd
}

// newClient wires the configured cache, tracker and logger into a client.
func (a *app) newClient(ctx context.Context, cfg *config.Config, strict bool) (*client.Client, error) {
	store, err := openCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts := []client.Option{client.WithCache(store), client.WithLogger(a.logger)}
	if strict {
		opts = append(opts, client.WithStrictParsing())
	}

	var tr *tracker.SQLiteTracker
	if cfg.Tracker.DBPath != "" {
		tr, err = tracker.New(cfg.Tracker.DBPath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init tracker: %w", err)
		}
		opts = append(opts, client.WithTracker(tr))
	}

	c, err := client.New(*cfg, opts...)
	if err != nil {
		_ = store.Close()
		if tr != nil {
			_ = tr.Close()
		}
		return nil, err
	}
	a.logger.Debug("client ready", "model", c.Model(), "backend", cfg.Cache.Backend, "caching", cfg.Caching)
	return c, nil
}

func readPrompt(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
