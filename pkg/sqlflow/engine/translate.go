package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Pipeline step identifiers. These are the graph node IDs and the step
// names carried on status events.
const (
	stepBuildContext     = "build_context"
	stepGenerateQuery    = "generate_query"
	stepExecuteQuery     = "execute_query"
	stepGenerateAnalysis = "generate_analysis"
	stepCompress         = "compress"
	stepAppendMessage    = "append_message"
)

// stepMessages is the fixed step-to-phrase table for status events.
var stepMessages = map[string]string{
	stepBuildContext:     "Building conversation context",
	stepGenerateQuery:    "Generating query",
	stepExecuteQuery:     "Executing query",
	stepGenerateAnalysis: "Analyzing results",
	stepCompress:         "Compressing conversation history",
	stepAppendMessage:    "Recording turn",
}

// statusMessage returns the human-readable phrase for a step. Unknown steps
// get a generic description rather than an error.
func statusMessage(step string) string {
	if msg, ok := stepMessages[step]; ok {
		return msg
	}
	return "Processing"
}

// Digest bounds.
const (
	digestPreviewFields = 3
	digestPreviewChars  = 80
)

// resultsDigest renders a short textual digest of a result set: the row
// count plus a bounded preview of the first row's first few fields.
func resultsDigest(rows []map[string]any) string {
	if len(rows) == 0 {
		return "0 rows"
	}

	first := rows[0]
	cols := make([]string, 0, len(first))
	for col := range first {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	if len(cols) > digestPreviewFields {
		cols = cols[:digestPreviewFields]
	}

	parts := make([]string, 0, len(cols))
	for _, col := range cols {
		parts = append(parts, fmt.Sprintf("%s=%s", col, truncate(fmt.Sprintf("%v", first[col]), digestPreviewChars)))
	}

	noun := "rows"
	if len(rows) == 1 {
		noun = "row"
	}
	return fmt.Sprintf("%d %s; first: %s", len(rows), noun, strings.Join(parts, ", "))
}

// truncate cuts s to at most n characters, appending an ellipsis when cut.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
