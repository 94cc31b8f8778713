package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/randalmurphal/sqlflow/pkg/sqlflow/llm"
)

// QueryGenerator turns a natural-language question into a query for the
// given data source. Failures are fatal to the turn.
type QueryGenerator interface {
	Generate(ctx context.Context, dataSource, question, contextText string) (string, error)
}

// QueryExecutor runs a generated query and returns its rows.
// Failures are fatal to the turn.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) ([]map[string]any, error)
}

// AnalysisGenerator produces an analysis digest for query results.
// Failures are non-fatal: the engine converts them into a placeholder digest.
type AnalysisGenerator interface {
	Analyze(ctx context.Context, question, query string, rows []map[string]any) (string, error)
}

// Summarizer folds rendered conversation history into a bounded summary.
// Failures are non-fatal: the engine skips that round of compression.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string, maxTokens int) (string, error)
}

const querySystemPrompt = `You are a SQL expert. Given a question about a database,
respond with a single valid SQL query and nothing else. Do not include
explanations or markdown fences.`

// LLMQueryGenerator generates queries with a completion model.
type LLMQueryGenerator struct {
	Client  llm.Client
	Model   string
	Dialect string
}

// Generate builds a generation prompt from the question and conversation
// context and returns the cleaned query text.
func (g *LLMQueryGenerator) Generate(ctx context.Context, dataSource, question, contextText string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Data source: %s\n", dataSource)
	if g.Dialect != "" {
		fmt.Fprintf(&b, "SQL dialect: %s\n", g.Dialect)
	}
	if contextText != "" {
		fmt.Fprintf(&b, "\nConversation context:\n%s\n", contextText)
	}
	fmt.Fprintf(&b, "\nQuestion: %s", question)

	resp, err := g.Client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: querySystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		Model:        g.Model,
	})
	if err != nil {
		return "", fmt.Errorf("generate query: %w", err)
	}

	query := cleanQuery(resp.Content)
	if query == "" {
		return "", fmt.Errorf("generate query: model returned empty query")
	}
	return query, nil
}

// cleanQuery strips markdown fences and surrounding whitespace from model output.
func cleanQuery(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```sql")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

// DBExecutor runs queries against a database/sql handle.
type DBExecutor struct {
	DB *sql.DB

	// MaxRows caps the result set. Zero means DefaultMaxRows.
	MaxRows int
}

// DefaultMaxRows bounds result sets returned by DBExecutor.
const DefaultMaxRows = 1000

// Execute runs the query and scans every row into a column-keyed map.
// Byte slices are converted to strings so results serialize cleanly.
func (e *DBExecutor) Execute(ctx context.Context, query string) ([]map[string]any, error) {
	maxRows := e.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	rows, err := e.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("execute query: columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		if len(out) >= maxRows {
			break
		}
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("execute query: scan: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	return out, nil
}

const analysisSystemPrompt = `You are a data analyst. Given a question, the SQL
query that answered it, and the result rows, write a short analysis of what
the results show. Two or three sentences, plain text.`

// analysisRowLimit bounds how many rows are included in the analysis prompt.
const analysisRowLimit = 20

// LLMAnalysisGenerator produces analysis digests with a completion model.
type LLMAnalysisGenerator struct {
	Client llm.Client
	Model  string
}

// Analyze renders a bounded sample of the rows and asks the model for a digest.
func (a *LLMAnalysisGenerator) Analyze(ctx context.Context, question, query string, rows []map[string]any) (string, error) {
	sample := rows
	if len(sample) > analysisRowLimit {
		sample = sample[:analysisRowLimit]
	}
	rendered, err := json.Marshal(sample)
	if err != nil {
		return "", fmt.Errorf("analyze: render rows: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nQuery:\n%s\n\n", question, query)
	fmt.Fprintf(&b, "Results (%d rows", len(rows))
	if len(sample) < len(rows) {
		fmt.Fprintf(&b, ", showing first %d", len(sample))
	}
	fmt.Fprintf(&b, "):\n%s", rendered)

	resp, err := a.Client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: analysisSystemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
		Model:        a.Model,
	})
	if err != nil {
		return "", fmt.Errorf("analyze: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// LLMSummarizer compresses conversation history with a completion model.
type LLMSummarizer struct {
	Client llm.Client
	Model  string
}

// Summarize sends the prepared compression prompt bounded to maxTokens.
func (s *LLMSummarizer) Summarize(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := s.Client.Complete(ctx, llm.CompletionRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Model:     s.Model,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", fmt.Errorf("summarize: model returned empty summary")
	}
	return summary, nil
}
