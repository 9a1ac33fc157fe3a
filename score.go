package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"leakdiag/internal/diagnostic"
	"leakdiag/internal/validation"
)

type scoreOpts struct {
	sessions    string
	orders      string
	cr          string
	aov         string
	abandoned   string
	firstName   string
	storeURL    string
	calendarURL string
	outputFmt   string
}

func newScoreCmd() *cobra.Command {
	var opts scoreOpts

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a store's metrics offline and print the report",
		Long: `Runs the diagnostic engine on the given 30-day metrics without touching the
database, email or CRM. Inputs go through the same validation as the web form.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.OutOrStdout(), opts, time.Now())
		},
	}

	cmd.Flags().StringVar(&opts.sessions, "sessions", "", "Sessions in the last 30 days (required)")
	cmd.Flags().StringVar(&opts.orders, "orders", "", "Orders in the last 30 days (required)")
	cmd.Flags().StringVar(&opts.cr, "cr", "", "Conversion rate in percent, e.g. 2.3 (required)")
	cmd.Flags().StringVar(&opts.aov, "aov", "", "Average order value (required)")
	cmd.Flags().StringVar(&opts.abandoned, "abandoned", "", "Abandoned carts in the last 30 days (required)")
	cmd.Flags().StringVar(&opts.firstName, "first-name", "there", "Name used in the report greeting")
	cmd.Flags().StringVar(&opts.storeURL, "store-url", "example.com", "Store address shown in the report")
	cmd.Flags().StringVar(&opts.calendarURL, "calendar-url", "#", "Scheduling link embedded in the report")
	cmd.Flags().StringVar(&opts.outputFmt, "output", "text", "Output format: text, json, table or html")
	for _, name := range []string{"sessions", "orders", "cr", "aov", "abandoned"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runScore(w io.Writer, opts scoreOpts, now time.Time) error {
	payload, err := json.Marshal(map[string]string{
		"firstName":         opts.firstName,
		"email":             "cli@example.com",
		"storeUrl":          opts.storeURL,
		"sessions30d":       opts.sessions,
		"orders30d":         opts.orders,
		"conversionRate":    opts.cr,
		"aov":               opts.aov,
		"abandonedCarts30d": opts.abandoned,
	})
	if err != nil {
		return err
	}

	form, err := validation.Parse(payload)
	if err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid input:\n%s", describeFieldErrors(verr))
		}
		return err
	}

	result := diagnostic.Analyze(form.Metrics, now)
	to := diagnostic.Recipient{FirstName: form.Contact.FirstName, StoreURL: form.Contact.StoreURL}

	switch strings.ToLower(opts.outputFmt) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			diagnostic.Result
			Teaser diagnostic.Teaser `json:"teaser"`
		}{result, diagnostic.GenerateTeaser(result)})
	case "html":
		out, err := diagnostic.RenderFullReport(result, to, opts.calendarURL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	case "table":
		return printScoreTable(w, result)
	case "text", "":
		out, err := diagnostic.RenderFullReportText(result, to, opts.calendarURL)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, out)
		return err
	default:
		return fmt.Errorf("unknown output format %q (want text, json, table or html)", opts.outputFmt)
	}
}

func describeFieldErrors(verr *validation.Error) string {
	fields := make([]string, 0, len(verr.FieldErrors))
	for f := range verr.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	for _, f := range fields {
		for _, msg := range verr.FieldErrors[f] {
			fmt.Fprintf(&b, "  %s: %s\n", f, msg)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	majorColor      = color.New(color.FgRed, color.Bold)
	meaningfulColor = color.New(color.FgYellow, color.Bold)
	solidColor      = color.New(color.FgGreen)
)

func bucketColor(b diagnostic.Bucket) *color.Color {
	switch b {
	case diagnostic.BucketMajor:
		return majorColor
	case diagnostic.BucketMeaningful:
		return meaningfulColor
	default:
		return solidColor
	}
}

// printScoreTable prints the headline figures followed by a findings table
// and a simulations table.
func printScoreTable(w io.Writer, r diagnostic.Result) error {
	c := bucketColor(r.LeakBucket)
	fmt.Fprintf(w, "Leak score: %s  %s\n", c.Sprintf("%d/100", r.LeakScore), c.Sprint(r.LeakBucketLabel))
	fmt.Fprintf(w, "Estimated monthly revenue: $%s  (revenue per session $%s)\n\n",
		diagnostic.FormatMoney(r.RevenueEst), diagnostic.FormatFixed2(r.RevenuePerSession))

	if len(r.Leaks) == 0 {
		fmt.Fprintln(w, diagnostic.NoLeaksMessage)
	} else {
		leaks := tablewriter.NewWriter(w)
		leaks.Header([]string{"#", "Finding", "Impact", "Score"})
		leaks.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignLeft
		})
		var data [][]string
		for i, l := range r.Leaks {
			data = append(data, []string{
				strconv.Itoa(i + 1),
				l.Title,
				string(l.Impact),
				strconv.Itoa(l.ImpactScore),
			})
		}
		if err := leaks.Bulk(data); err != nil {
			return err
		}
		if err := leaks.Render(); err != nil {
			return err
		}
	}
	fmt.Fprintln(w)

	sims := tablewriter.NewWriter(w)
	sims.Header([]string{"Scenario", "New revenue", "Uplift", "Uplift %"})
	sims.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	green := color.New(color.FgGreen).SprintFunc()
	var data [][]string
	for _, s := range r.Simulations {
		data = append(data, []string{
			s.Label,
			"$" + diagnostic.FormatInt(s.NewRevenue),
			green("+$" + diagnostic.FormatInt(s.Uplift)),
			"+" + strconv.FormatInt(s.UpliftPercent, 10) + "%",
		})
	}
	if err := sims.Bulk(data); err != nil {
		return err
	}
	return sims.Render()
}
