package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/pipeline"
	"github.com/joescharf/comply/internal/review"
	"github.com/joescharf/comply/internal/rules"
	"github.com/joescharf/comply/internal/runs"
)

// loadRules returns the catalog named by rules.file, or the embedded one.
func loadRules() (*rules.Set, error) {
	return rules.Load(viper.GetString("rules.file"))
}

func retryPolicy() review.RetryPolicy {
	return review.RetryPolicy{
		MaxAttempts:     viper.GetInt("review.retry.max_attempts"),
		InitialInterval: viper.GetDuration("review.retry.initial_interval"),
		MaxInterval:     viper.GetDuration("review.retry.max_interval"),
	}
}

// buildPipeline assembles the review pipeline from configuration. Without an
// API key every stage uses the catalog summary reviewer and no composer is
// available, so only review.max_rounds 0 is accepted.
func buildPipeline(set *rules.Set, logger *slog.Logger) (*pipeline.Pipeline, error) {
	if !viper.IsSet("review.max_rounds") {
		return nil, apperr.Configuration("configure pipeline",
			"review.max_rounds is not set (add it to the config file, set COMPLY_REVIEW_MAX_ROUNDS, or pass --max-rounds)")
	}

	marker := viper.GetString("review.rejection_marker")
	client := newLLMClient()
	reviewerFor := func(def rules.StageDefinition) review.Reviewer {
		if client == nil {
			return review.SummaryReviewer{Stage: def.Name, Marker: marker}
		}
		return client.Reviewer(def.Name, def.Instructions, marker)
	}
	stages := review.StagesFromSet(set, reviewerFor, review.StageOptions{
		Rejects: review.MarkerPredicate(marker),
		Retry:   retryPolicy(),
		Logger:  logger,
	})

	var composer review.Composer
	if client != nil {
		composer = client
	}

	return pipeline.New(pipeline.Config{
		Stages:           stages,
		Composer:         composer,
		MaxRounds:        viper.GetInt("review.max_rounds"),
		CitationPrefix:   viper.GetString("review.citation_prefix"),
		Retry:            retryPolicy(),
		ConcurrentStages: viper.GetBool("review.concurrent_stages"),
		Logger:           logger,
	})
}

// newService opens the store and, when withPipeline is set, builds the
// pipeline too. Read-only commands pass false.
func newService(withPipeline bool) (*runs.Service, *rules.Set, error) {
	set, err := loadRules()
	if err != nil {
		return nil, nil, err
	}

	var p *pipeline.Pipeline
	if withPipeline {
		if p, err = buildPipeline(set, slog.Default()); err != nil {
			return nil, nil, err
		}
	}

	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}
	return runs.NewService(s, p, slog.Default()), set, nil
}

// channelLimits merges limits.<channel> from configuration with --limit
// flags. A flag of "mobile=30" sets a limit; a bare "desktop" (or
// "desktop=none") configures the channel without one.
func channelLimits(flags []string) (models.ChannelLimits, error) {
	const op = "parse limits"
	limits := models.ChannelLimits{}

	for ch, raw := range viper.GetStringMap("limits") {
		if raw == nil {
			limits[models.Channel(ch)] = nil
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(raw)))
		if err != nil {
			return nil, apperr.InvalidInput(op, "limits.%s: %q is not a number", ch, raw)
		}
		limits[models.Channel(ch)] = models.Limit(n)
	}

	for _, f := range flags {
		name, value, hasValue := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, apperr.InvalidInput(op, "--limit %q has no channel name", f)
		}
		if !hasValue || value == "none" {
			limits[models.Channel(name)] = nil
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, apperr.InvalidInput(op, "--limit %s: %q is not a number", name, value)
		}
		limits[models.Channel(name)] = models.Limit(n)
	}

	if len(limits) == 0 {
		return nil, nil
	}
	return limits, nil
}

// readContent takes the copy from --text, a file argument, or stdin ("-" or
// no argument with piped input).
func readContent(text string, args []string, stdin io.Reader) (string, error) {
	const op = "read content"
	if text != "" {
		if len(args) > 0 {
			return "", apperr.InvalidInput(op, "pass either --text or a file, not both")
		}
		return text, nil
	}

	if len(args) == 0 || args[0] == "-" {
		if stdin == nil {
			return "", apperr.InvalidInput(op, "no content: pass --text, a file, or pipe it on stdin")
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[0], err)
	}
	return string(data), nil
}

// stdinIfPiped returns os.Stdin unless it is a terminal.
func stdinIfPiped() io.Reader {
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice != 0 {
		return nil
	}
	return os.Stdin
}

// newServerService is newService for long-running surfaces: a missing or
// invalid pipeline configuration leaves reviews disabled instead of failing.
func newServerService() (*runs.Service, *rules.Set, error) {
	svc, set, err := newService(true)
	if err == nil || !apperr.IsConfiguration(err) {
		return svc, set, err
	}
	ui.Warning("Reviews disabled: %v", err)
	return newService(false)
}
