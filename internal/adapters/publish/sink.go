package publish

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/okian/tipster/internal/domain/types"
	"github.com/olekukonko/tablewriter"
)

// Sink delivers rendered messages.
type Sink interface {
	Send(ctx context.Context, msg string) error
}

// Summarizer is implemented by sinks that want one summary per batch.
type Summarizer interface {
	Summarize(ctx context.Context, entries []types.Entry) error
}

// ConsoleSink prints messages and a ranked summary table.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewConsoleSink writes to stdout.
func NewConsoleSink() *ConsoleSink {
	return NewConsoleSinkWriter(os.Stdout)
}

// NewConsoleSinkWriter writes to w.
func NewConsoleSinkWriter(w io.Writer) *ConsoleSink {
	return &ConsoleSink{out: w, now: time.Now}
}

// Send implements Sink.
func (c *ConsoleSink) Send(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "\n[%s] publish\n%s\n", c.now().Format("15:04:05"), msg)
	return err
}

// Summarize implements Summarizer.
func (c *ConsoleSink) Summarize(_ context.Context, entries []types.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) == 0 {
		_, err := fmt.Fprintf(c.out, "[%s] nothing to publish\n", c.now().Format("15:04:05"))
		return err
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Strategy", "Confidence", "Stake", "Min odds")
	for _, e := range entries {
		if err := table.Append(
			fmt.Sprintf("%d", e.Rank),
			e.Key,
			fmt.Sprintf("%.1f%%", e.Confidence*100),
			fmt.Sprintf("%.2f%%", e.Stake*100),
			fmt.Sprintf("%.1f", e.MinOdds),
		); err != nil {
			return err
		}
	}
	return table.Render()
}
