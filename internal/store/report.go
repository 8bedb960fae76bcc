package store

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/suykerbuyk/cmv/internal/trim"
)

// Report renders a trim.Metrics result as a human-readable summary. The
// CLI's trim command prints the metrics as JSON and does not use it.
type Report struct {
	Metrics *trim.Metrics
}

// String formats byte counts and line counts the way the teacher's CLI
// output formats file sizes and record counts, via go-humanize.
func (r Report) String() string {
	m := r.Metrics
	var reduction float64
	if m.OriginalBytes > 0 {
		reduction = 100 * float64(m.OriginalBytes-m.TrimmedBytes) / float64(m.OriginalBytes)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s (%.1f%% smaller)\n",
		humanize.Bytes(uint64(m.OriginalBytes)),
		humanize.Bytes(uint64(m.TrimmedBytes)),
		reduction,
	)
	fmt.Fprintf(&b, "  %s tool results stubbed\n", humanize.Comma(int64(m.ToolResultsStubbed)))
	fmt.Fprintf(&b, "  %s thinking signatures stripped\n", humanize.Comma(int64(m.SignaturesStripped)))
	fmt.Fprintf(&b, "  %s file-history-snapshot lines removed\n", humanize.Comma(int64(m.FileHistoryRemoved)))
	fmt.Fprintf(&b, "  %s images stripped\n", humanize.Comma(int64(m.ImagesStripped)))
	fmt.Fprintf(&b, "  %s tool_use inputs stubbed\n", humanize.Comma(int64(m.ToolUseInputsStubbed)))
	fmt.Fprintf(&b, "  %s queue operations removed\n", humanize.Comma(int64(m.QueueOperationsRemoved)))
	if m.PreCompactionLinesSkipped > 0 {
		fmt.Fprintf(&b, "  %s pre-compaction lines skipped\n", humanize.Comma(int64(m.PreCompactionLinesSkipped)))
	}
	fmt.Fprintf(&b, "  preserved: %s user messages, %s assistant responses, %s tool_use requests\n",
		humanize.Comma(int64(m.UserMessages)),
		humanize.Comma(int64(m.AssistantResponses)),
		humanize.Comma(int64(m.ToolUseRequests)),
	)
	return b.String()
}
