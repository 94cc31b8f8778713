package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/observability"
	"github.com/randalmurphal/sqlflow/pkg/sqlflow/session"
)

const summaryInstruction = `Summarize this conversation history between a user
and a data-analysis assistant. Capture the key questions asked, the findings,
any constraints discovered, and query patterns that worked. Be concise.`

// historyDelimiter separates rendered messages in the compression prompt.
const historyDelimiter = "\n---\n"

// analysisRenderLimit bounds per-message analysis text in rendered history.
const analysisRenderLimit = 200

// shouldCompress decides whether this turn's housekeeping folds older
// messages into the summary. It runs regardless of turn success: compression
// operates on already-committed history, not the in-flight turn.
//
// Two triggers, either sufficient: the turn's own message would push the
// count past SummarizeThreshold, or the estimated token size of the kept
// window exceeds CompressTokenThreshold.
func (e *Engine) shouldCompress(ts session.TurnState) bool {
	if e.summarizer == nil {
		return false
	}

	keep := e.opts.RecentWindow - 1
	if keep < 0 {
		keep = 0
	}
	if len(ts.Messages) <= keep {
		// Nothing older than the kept window to fold.
		return false
	}

	if len(ts.Messages)+1 > e.opts.SummarizeThreshold {
		return true
	}

	kept := ts.Messages[len(ts.Messages)-keep:]
	return estimateTokens(renderHistory(kept)) > e.opts.CompressTokenThreshold
}

// compress folds all messages older than the kept window into the rolling
// summary. On summarizer failure it leaves Summary and Messages untouched:
// a failed compression must never lose history or block turn completion.
func (e *Engine) compress(ctx sqlflow.Context, ts session.TurnState) (session.TurnState, error) {
	keep := e.opts.RecentWindow - 1
	if keep < 0 {
		keep = 0
	}
	if len(ts.Messages) <= keep {
		return ts, nil
	}

	older := ts.Messages[:len(ts.Messages)-keep]
	kept := ts.Messages[len(ts.Messages)-keep:]

	prompt := buildSummaryPrompt(ts.Summary, older)

	callCtx, cancel := context.WithTimeout(ctx, e.opts.SummarizeTimeout)
	defer cancel()

	summary, err := e.summarizer.Summarize(callCtx, prompt, e.opts.MaxSummaryTokens)
	if err != nil {
		observability.LogCompressionSkipped(ctx.Logger(), ts.SessionID, err)
		return ts, nil
	}

	ts.Summary = summary
	ts.Messages = append([]session.Message(nil), kept...)
	ts.Compressed = true

	observability.LogCompression(ctx.Logger(), ts.SessionID, len(older), len(kept))
	e.metrics.RecordCompression(ctx, len(older))
	return ts, nil
}

// buildSummaryPrompt assembles the compression prompt. An existing summary
// is prepended so compression is incremental rather than a full replay.
func buildSummaryPrompt(previousSummary string, older []session.Message) string {
	var b strings.Builder
	b.WriteString(summaryInstruction)
	b.WriteString("\n\n")
	if previousSummary != "" {
		fmt.Fprintf(&b, "Previous summary:\n%s\n\n", previousSummary)
	}
	fmt.Fprintf(&b, "History to fold in:\n%s", renderHistory(older))
	return b.String()
}

// renderHistory flattens messages into the textual form used for both
// compression prompts and token estimation.
func renderHistory(msgs []session.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		var b strings.Builder
		fmt.Fprintf(&b, "Q: %s", m.Question)
		if m.Query != nil {
			fmt.Fprintf(&b, "\nQuery: %s", *m.Query)
		}
		if m.ResultsDigest != nil {
			fmt.Fprintf(&b, "\nResults: %s", *m.ResultsDigest)
		}
		if m.Analysis != nil {
			fmt.Fprintf(&b, "\nAnalysis: %s", truncate(*m.Analysis, analysisRenderLimit))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, historyDelimiter)
}

// estimateTokens approximates token count as one token per four characters.
func estimateTokens(s string) int {
	return len(s) / 4
}
