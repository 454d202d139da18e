package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/comply/internal/audit"
	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/review"
	"github.com/joescharf/comply/internal/verdict"
	"github.com/joescharf/comply/internal/wordcount"
)

type stopPoint struct {
	cancelled bool
	after     string // last completed stage, empty if none ran
}

// reviewRound runs every stage over every draft in declared order. Each
// outcome is appended to the log as soon as it and all earlier outcomes are
// known. Cancellation is honoured only between stages; a cancelled round is
// returned Partial with the outcomes gathered so far.
func (p *Pipeline) reviewRound(ctx context.Context, number int, drafts []Draft, limits models.ChannelLimits, log *audit.Log) (*Round, stopPoint, error) {
	rr := &Round{Number: number}
	var stop stopPoint
	var all []models.Issue
	var counts []models.WordCountResult

	for _, d := range drafts {
		dr := DraftReview{Draft: d}
		if d.Channel == "" {
			dr.WordCounts = wordcount.Validate(d.Content.Text, limits)
		} else {
			dr.WordCounts = []models.WordCountResult{wordcount.ValidateChannel(d.Content.Text, d.Channel, limits[d.Channel])}
		}

		var prior []models.Issue
		stages := p.cfg.Stages
		for i := 0; i < len(stages); {
			if ctx.Err() != nil {
				stop.cancelled = true
				rr.Partial = true
				rr.Reviews = append(rr.Reviews, dr)
				rr.Verdict = verdict.Aggregate(append(all, dr.Issues...), append(counts, dr.WordCounts...))
				return rr, stop, nil
			}

			batch := p.nextBatch(i)
			results := p.runBatch(ctx, batch, d.Content, prior[:len(prior):len(prior)])
			for j, wait := range results {
				out := <-wait
				for k := range out.Issues {
					out.Issues[k].Channel = d.Channel
				}
				e, err := p.append(ctx, log, batch[j].Name()+channelSuffix(d.Channel), out.RawMessage, out.Decision)
				if err != nil {
					return nil, stop, err
				}
				p.logger.Debug("stage completed",
					"round", number, "stage", out.Stage, "channel", d.Channel,
					"decision", out.Decision, "issues", len(out.Issues), "attempts", out.Attempts)
				dr.Stages = append(dr.Stages, StageResult{Channel: d.Channel, Outcome: out, Sequence: e.SequenceNumber})
				dr.Issues = append(dr.Issues, out.Issues...)
				prior = append(prior, out.Issues...)
				stop.after = out.Stage + channelSuffix(d.Channel)
			}
			i += len(batch)
		}

		all = append(all, dr.Issues...)
		counts = append(counts, dr.WordCounts...)
		rr.Reviews = append(rr.Reviews, dr)
	}

	rr.Verdict = verdict.Aggregate(all, counts)
	return rr, stop, nil
}

// nextBatch returns the stages starting at i that run together: a run of
// consecutive stages that ignore prior issues when concurrency is enabled,
// otherwise just stage i.
func (p *Pipeline) nextBatch(i int) []review.Stage {
	stages := p.cfg.Stages
	if !p.cfg.ConcurrentStages || stages[i].UsesPriorIssues() {
		return stages[i : i+1]
	}
	j := i + 1
	for j < len(stages) && !stages[j].UsesPriorIssues() {
		j++
	}
	return stages[i:j]
}

// runBatch starts the batch and returns one channel per stage, in order.
// Stages run under a context that is not cancelled, so a stage is never
// interrupted part way.
func (p *Pipeline) runBatch(ctx context.Context, batch []review.Stage, content models.ContentItem, prior []models.Issue) []<-chan review.Outcome {
	stageCtx := context.WithoutCancel(ctx)
	results := make([]<-chan review.Outcome, len(batch))

	if len(batch) == 1 {
		ch := make(chan review.Outcome, 1)
		ch <- batch[0].Run(stageCtx, content, prior)
		results[0] = ch
		return results
	}

	for i, st := range batch {
		ch := make(chan review.Outcome, 1)
		results[i] = ch
		go func() {
			ch <- st.Run(stageCtx, content, prior)
		}()
	}
	return results
}

// revise asks the Composer for one new draft per configured channel. Each
// current draft is revised against its own feedback.
func (p *Pipeline) revise(ctx context.Context, rr *Round, limits models.ChannelLimits) ([]Draft, error) {
	byChannel := make(map[models.Channel]string)
	var shared string
	sharedSet := false

	for _, dr := range rr.Reviews {
		feedback := verdict.Aggregate(dr.Issues, dr.WordCounts)
		target := limits
		if dr.Draft.Channel != "" {
			target = models.ChannelLimits{dr.Draft.Channel: limits[dr.Draft.Channel]}
		}

		var out map[models.Channel]string
		_, err := p.cfg.Retry.Do(context.WithoutCancel(ctx), func(ctx context.Context) error {
			var err error
			out, err = p.cfg.Composer.Compose(ctx, dr.Draft.Content.Text, feedback, target.Clone())
			return err
		}, func(attempt int, err error, wait time.Duration) {
			p.logger.Warn("composer call failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		})
		if err != nil {
			return nil, err
		}

		if len(limits) == 0 {
			text, ok := soleDraft(out)
			if !ok {
				return nil, fmt.Errorf("composer returned %d drafts, want 1", len(out))
			}
			shared, sharedSet = text, true
			continue
		}
		for ch := range target {
			text := strings.TrimSpace(out[ch])
			if text == "" {
				p.logger.Warn("composer omitted channel, keeping previous draft", "channel", ch)
				text = dr.Draft.Content.Text
			}
			byChannel[ch] = text
		}
	}

	if len(limits) == 0 {
		if !sharedSet || strings.TrimSpace(shared) == "" {
			return nil, fmt.Errorf("composer returned an empty draft")
		}
		return []Draft{{Content: models.NewContentItem(shared, limits)}}, nil
	}

	drafts := make([]Draft, 0, len(byChannel))
	for _, ch := range limits.Channels() {
		drafts = append(drafts, Draft{
			Channel: ch,
			Content: models.NewContentItem(byChannel[ch], limits),
		})
	}
	return drafts, nil
}

// soleDraft picks the draft when no channels are configured: the
// ChannelDefault entry, or the only entry.
func soleDraft(out map[models.Channel]string) (string, bool) {
	if text, ok := out[models.ChannelDefault]; ok {
		return text, true
	}
	if len(out) == 1 {
		for _, text := range out {
			return text, true
		}
	}
	return "", false
}
