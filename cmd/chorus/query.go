package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/rhuss/chorus/pkg/api"
	"github.com/rhuss/chorus/pkg/transport"
)

type queryOptions struct {
	models  []string
	timeout time.Duration
	json    bool
}

func newQueryCmd(load configLoader) *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query [flags] PROMPT",
		Short: "Send one prompt to several models and print every answer",
		Example: `  chorus query -m gpt-4o-mini -m claude-3-5-haiku-latest "Explain CRDTs in two sentences"
  chorus query -m gemini-2.0-flash --timeout 5s --json "hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), load, opts, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVarP(&opts.models, "model", "m", nil, "model id to query (repeatable, order is kept)")
	cmd.Flags().DurationVarP(&opts.timeout, "timeout", "t", 0, "deadline for the whole fan-out (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the aggregated response as JSON")
	cmd.MarkFlagRequired("model")
	return cmd
}

// runQuery runs a single fan-out in process. Nothing is persisted.
func runQuery(ctx context.Context, load configLoader, opts queryOptions, prompt string, out io.Writer) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	catalog, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	providers, err := buildProviders(cfg, catalog)
	if err != nil {
		return err
	}
	defer providers.Close()

	eng, err := buildEngine(cfg, catalog, providers, nil)
	if err != nil {
		return err
	}

	persist := false
	req := &api.QueryRequest{
		Prompt:    prompt,
		ModelIDs:  opts.models,
		TimeoutMs: int(opts.timeout / time.Millisecond),
		Persist:   &persist,
	}
	resp, err := transport.RequestID()(eng).Send(ctx, req)
	if err != nil {
		return err
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp.AggregatedResponse)
	}
	printOutcomes(out, &resp.AggregatedResponse)

	if resp.Succeeded() == 0 {
		return fmt.Errorf("all %d models failed", len(resp.Results))
	}
	return nil
}

func printOutcomes(out io.Writer, resp *api.AggregatedResponse) {
	table := uitable.New()
	table.Separator = "  "
	table.AddRow("MODEL", "STATUS", "LATENCY")
	for _, o := range resp.Results {
		status := string(o.Status)
		if !o.OK() {
			status = string(o.Kind())
		}
		table.AddRow(o.ModelID, status, fmt.Sprintf("%dms", o.LatencyMs))
	}
	fmt.Fprintln(out, table)

	for _, o := range resp.Results {
		fmt.Fprintf(out, "\n== %s ==\n", o.ModelID)
		if o.OK() {
			fmt.Fprintln(out, strings.TrimSpace(o.Content))
			continue
		}
		detail := o.ErrorDetail
		if o.ProviderStatus != 0 {
			detail = fmt.Sprintf("%s (HTTP %d)", detail, o.ProviderStatus)
		}
		fmt.Fprintf(out, "%s: %s\n", o.Kind(), detail)
	}
	fmt.Fprintf(out, "\n%d of %d succeeded in %dms (request %s)\n",
		resp.Succeeded(), len(resp.Results), resp.ElapsedMs, resp.RequestID)
}
