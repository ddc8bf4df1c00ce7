// Command leadwatch follows a leadtrack server from the terminal: it prints
// the current lead listing, then keeps it fresh by listening to the push
// channel and refreshing whenever other clients change things. With -export
// it writes the CSV export and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/johnwards/leadtrack/internal/client"
	"github.com/johnwards/leadtrack/internal/config"
	"github.com/johnwards/leadtrack/internal/domain"
	"github.com/johnwards/leadtrack/internal/ws"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	server := flag.String("server", "http://localhost"+defaultPort(cfg.Addr), "leadtrack server base URL")
	search := flag.String("search", "", "filter leads by name, email or company")
	pageSize := flag.Int("page-size", 10, "leads per page")
	exportPath := flag.String("export", "", "write the CSV export to this file and exit (- for stdout)")
	flag.Parse()

	c := client.New(client.Options{
		BaseURL:   *server,
		AuthToken: cfg.AuthToken,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *exportPath != "" {
		return exportCSV(ctx, c, *exportPath, *search)
	}

	return watch(ctx, c, client.ListQuery{Page: 1, PageSize: *pageSize, Search: *search, SortDesc: true})
}

func exportCSV(ctx context.Context, c *client.Client, path, search string) error {
	out := os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	filename, err := c.ExportCSV(ctx, out, search)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if path != "-" {
		fmt.Fprintf(os.Stderr, "wrote %s (server name %s)\n", path, filename)
	}
	return nil
}

func watch(ctx context.Context, c *client.Client, query client.ListQuery) error {
	co := client.NewCoordinator(c)
	co.SetQuery(query)

	if err := co.Refresh(ctx); err != nil {
		return fmt.Errorf("initial fetch: %w", err)
	}
	printPage(co)

	// Push events arrive in bursts when another client is busy; coalesce
	// the refreshes.
	debounce := client.NewDebouncer(client.DefaultDebounce)
	defer debounce.Stop()

	unsubscribe := co.Subscribe(func(evt ws.Event) {
		if evt.Data.Message != "" {
			fmt.Printf("\n* %s\n", evt.Data.Message)
		}
		debounce.Trigger(func() {
			if err := co.Refresh(ctx); err != nil {
				slog.Warn("refresh failed", "error", err)
				return
			}
			printPage(co)
		})
	})
	defer unsubscribe()

	listener := client.NewListener(c, co.HandleEvent)
	listener.OnStateChange(func(s client.ConnState) {
		slog.Info("push channel", "state", s.String())
	})

	return listener.Run(ctx)
}

func printPage(co *client.Coordinator) {
	page, _ := co.Snapshot()
	if page == nil {
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCOMPANY\tSTAGE\tSTATUS\tEMAIL")
	for _, lead := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			lead.Name, lead.Company, lead.CurrentStage, lead.Status(), lead.Email)
	}
	_ = tw.Flush()
	fmt.Printf("page %d/%d, %d lead(s), %d%% of pipeline shown\n",
		page.Page, max(page.TotalPages, 1), page.Total, progressOfPage(page.Items))
}

// progressOfPage averages the pipeline progress of the listed leads.
func progressOfPage(items []domain.Lead) int {
	if len(items) == 0 {
		return 0
	}
	sum := 0
	for _, lead := range items {
		sum += domain.StageProgress(lead.CurrentStage)
	}
	return sum / len(items)
}

// defaultPort extracts the listen port from an addr like ":8080".
func defaultPort(addr string) string {
	if addr == "" {
		return ":8080"
	}
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i:]
		}
	}
	return ":8080"
}
