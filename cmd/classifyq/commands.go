package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		baseURL        string
		timeoutSeconds int
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create or update a CLI profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			name := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[name]

			if strings.TrimSpace(baseURL) == "" {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Server base URL", firstNonEmpty(prof.BaseURL, "http://localhost:8080"))
			}
			u, err := url.Parse(baseURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return errors.New("base URL must be a valid http(s) URL")
			}
			prof.BaseURL = strings.TrimRight(baseURL, "/")
			if timeoutSeconds > 0 {
				prof.TimeoutSeconds = timeoutSeconds
			}
			cfg.Profiles[name] = prof
			cfg.CurrentProfile = name
			if err := saveConfig(cfg, path); err != nil {
				return err
			}
			fmt.Printf("%s Profile %q saved to %s\n", ui.ok("[OK]"), name, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server base URL")
	cmd.Flags().IntVar(&timeoutSeconds, "timeout-seconds", 0, "Default HTTP timeout")
	return cmd
}

func submitCmd(baseURL *string, timeout *time.Duration, ui *ui) *cobra.Command {
	var (
		concurrency int
		noFollow    bool
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "submit <file> [file...]",
		Short: "Classify one or more images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			c := newClient(*baseURL, *timeout)

			if len(args) == 1 {
				return submitOne(ctx, c, args[0], noFollow, asJSON, ui)
			}
			return submitMany(ctx, c, args, concurrency, asJSON, ui)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Parallel uploads when submitting several files")
	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "Print the result id and return without waiting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func submitOne(ctx context.Context, c *client, path string, noFollow, asJSON bool, ui *ui) error {
	spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
	spin.Suffix = " Uploading " + path + "..."
	if ui.interactive {
		spin.Start()
	}
	first, err := c.submit(ctx, path, false)
	if err != nil {
		spin.Stop()
		return err
	}
	if noFollow {
		spin.Stop()
		fmt.Printf("%s Submitted %s: %s\n", ui.ok("[OK]"), path, first.ID)
		return nil
	}

	final, err := c.follow(ctx, first.ID, func(r result) {
		spin.Lock()
		spin.Suffix = " " + stageLabel(r.Status) + "..."
		spin.Unlock()
	})
	spin.Stop()
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(final)
	}
	printResult(final, ui)
	if final.Status == "FAILED" {
		return errors.New(final.Error)
	}
	return nil
}

func submitMany(ctx context.Context, c *client, paths []string, concurrency int, asJSON bool, ui *ui) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionSetWidth(barWidth()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(ui.interactive),
	)

	results := make([]result, len(paths))
	errs := make([]error, len(paths))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			r, err := c.submit(gctx, p, true)
			mu.Lock()
			results[i], errs[i] = r, err
			mu.Unlock()
			_ = bar.Add(1)
			// one bad file does not stop the batch; only cancellation does
			if errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	_ = bar.Finish()

	if asJSON {
		return printJSON(results)
	}
	failed := 0
	for i, p := range paths {
		switch {
		case errs[i] != nil:
			failed++
			fmt.Printf("%s %s: %v\n", ui.err("[FAIL]"), p, errs[i])
		case results[i].Status == "FAILED":
			failed++
			fmt.Printf("%s %s: %s\n", ui.err("[FAIL]"), p, results[i].Error)
		default:
			fmt.Printf("%s %s: %s\n", ui.ok("[OK]"), p, summary(results[i]))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(paths))
	}
	return nil
}

func resultCmd(baseURL *string, timeout *time.Duration, ui *ui) *cobra.Command {
	var (
		follow bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "result <id>",
		Short: "Show a classification result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *timeout)
			var r result
			var err error
			if follow {
				r, err = c.follow(cmd.Context(), args[0], nil)
			} else {
				err = c.getJSON(cmd.Context(), "/v1/classify/results/"+url.PathEscape(args[0]), &r)
			}
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(r)
			}
			printResult(r, ui)
			return nil
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "Wait for a terminal state")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func historyCmd(baseURL *string, timeout *time.Duration, ui *ui) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed classifications, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *timeout)
			spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
			spin.Suffix = " Fetching history..."
			if ui.interactive {
				spin.Start()
			}
			var list []result
			err := c.getJSON(cmd.Context(), "/v1/classify/history", &list)
			spin.Stop()
			if err != nil {
				return err
			}
			if limit > 0 && len(list) > limit {
				list = list[:limit]
			}
			if asJSON {
				return printJSON(list)
			}
			if len(list) == 0 {
				fmt.Println(ui.dim("No classifications yet."))
				return nil
			}
			for _, r := range list {
				fmt.Printf("%s  %s  %-24s %s\n", ui.dim(r.Timestamp.Local().Format("2006-01-02 15:04")), ui.dim(shortID(r.ID)), r.FileName, summary(r))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most N entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func modelCmd(baseURL *string, timeout *time.Duration, ui *ui) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Show deployed model metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *timeout)
			var m modelMetrics
			if err := c.getJSON(cmd.Context(), "/v1/classify/model", &m); err != nil {
				return err
			}
			if asJSON {
				return printJSON(m)
			}
			printModel(m, ui)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
