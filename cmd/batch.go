package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/profiler-cli/internal/fetcher"
	"github.com/sells-group/profiler-cli/internal/model"
	sfpkg "github.com/sells-group/profiler-cli/pkg/salesforce"
)

var (
	batchIn     string
	batchOutDir string
	batchXLSX   string
	batchPush   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Build discovery profiles for a CSV of organizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		orgs, err := readOrgs(ctx, batchIn)
		if err != nil {
			return err
		}

		builder, err := initBuilder(ctx, "", 0)
		if err != nil {
			return err
		}

		if batchOutDir != "" {
			if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
				return eris.Wrap(err, "create output directory")
			}
		}

		results, err := processBatch(ctx, orgs, cfg.Batch.MaxConcurrent, batchOutDir, builder.Build)
		if err != nil {
			return err
		}

		if batchXLSX != "" {
			if err := writeWorkbook(batchXLSX, results); err != nil {
				return err
			}
			zap.L().Info("summary workbook written", zap.String("path", batchXLSX))
		}

		if batchPush {
			sf, err := initSalesforce()
			if err != nil {
				return err
			}
			if err := pushBatch(ctx, sf, results); err != nil {
				return eris.Wrap(err, "push batch to salesforce")
			}
		}

		return nil
	},
}

// org is one input row of the batch CSV.
type org struct {
	Name string
	Hint string
}

// batchResult captures one organization's outcome for the summary workbook.
type batchResult struct {
	Org     org
	Profile *model.Profile
	Err     error
}

// readOrgs parses the batch input CSV. A header row with a name column is
// required; a hint column is optional.
func readOrgs(ctx context.Context, path string) ([]org, error) {
	if path == "" {
		return nil, eris.New("batch: --in is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: open input")
	}
	defer f.Close()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	nameIdx, hintIdx := -1, -1
	var orgs []org
	for row := range rowCh {
		if nameIdx < 0 {
			select {
			case header := <-headerCh:
				nameIdx, hintIdx = orgColumns(header)
				if nameIdx < 0 {
					return nil, eris.Errorf("batch: no name column in %s", path)
				}
			default:
				return nil, eris.New("batch: csv missing header row")
			}
		}

		if nameIdx >= len(row) || row[nameIdx] == "" {
			continue
		}
		o := org{Name: row[nameIdx]}
		if hintIdx >= 0 && hintIdx < len(row) {
			o.Hint = row[hintIdx]
		}
		orgs = append(orgs, o)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	return orgs, nil
}

// orgColumns locates the name and hint columns in the header row. The hint
// index is -1 when absent.
func orgColumns(header []string) (nameIdx, hintIdx int) {
	nameIdx, hintIdx = -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name", "organization", "org":
			if nameIdx < 0 {
				nameIdx = i
			}
		case "hint", "location":
			if hintIdx < 0 {
				hintIdx = i
			}
		}
	}
	return nameIdx, hintIdx
}

// processBatch builds profiles concurrently. Individual failures are logged
// and counted, never aborting the run; per-organization JSON lands in outDir
// when set. Results keep input order.
func processBatch(ctx context.Context, orgs []org, concurrency int, outDir string, build buildFunc) ([]batchResult, error) {
	if len(orgs) == 0 {
		zap.L().Info("no organizations in batch input")
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	runID := uuid.New().String()
	zap.L().Info("processing batch",
		zap.String("run_id", runID),
		zap.Int("organizations", len(orgs)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	results := make([]batchResult, len(orgs))

	for i, o := range orgs {
		g.Go(func() error {
			log := zap.L().With(
				zap.String("run_id", runID),
				zap.String("organization", o.Name),
			)

			p, err := build(gctx, o.Name, o.Hint)
			if err != nil {
				failed.Add(1)
				results[i] = batchResult{Org: o, Err: err}
				log.Error("profile build failed", zap.Error(err))
				return nil // don't abort the batch on individual failure
			}

			results[i] = batchResult{Org: o, Profile: p}
			if outDir != "" {
				slug := slugify(o.Name)
				if slug == "" {
					slug = fmt.Sprintf("org-%d", i+1)
				}
				path := filepath.Join(outDir, slug+".json")
				if wErr := writeProfile(p, path, true); wErr != nil {
					failed.Add(1)
					results[i].Err = wErr
					log.Error("profile write failed", zap.Error(wErr))
					return nil
				}
				log.Debug("profile written", zap.String("path", path))
			}

			succeeded.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.String("run_id", runID),
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}

// slugify turns an organization name into a safe file name.
func slugify(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			dash = false
		default:
			if !dash && sb.Len() > 0 {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// pushBatch updates the matching Salesforce account for every successfully
// built profile in one Collections call per 200 records. Organizations
// without an existing account are logged and skipped; batch push never
// creates accounts.
func pushBatch(ctx context.Context, sf sfpkg.Client, results []batchResult) error {
	var updates []sfpkg.AccountUpdate
	for _, res := range results {
		if res.Err != nil || res.Profile == nil {
			continue
		}

		p := res.Profile
		name := p.Query
		if p.ResolvedName != nil && *p.ResolvedName != "" {
			name = *p.ResolvedName
		}

		account, err := sfpkg.FindAccountByName(ctx, sf, name)
		if err != nil {
			return err
		}
		if account == nil {
			zap.L().Warn("no salesforce account for organization, skipping",
				zap.String("name", name),
			)
			continue
		}

		updates = append(updates, sfpkg.AccountUpdate{
			ID:     account.ID,
			Fields: profileAccountFields(p),
		})
	}

	pushed, err := sfpkg.BulkUpdateAccounts(ctx, sf, updates)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range pushed {
		if !r.Success {
			failed++
			zap.L().Error("salesforce account update failed",
				zap.String("id", r.ID),
				zap.Strings("errors", r.Errors),
			)
		}
	}
	zap.L().Info("batch push complete",
		zap.Int("updated", len(pushed)-failed),
		zap.Int("failed", failed),
	)
	return nil
}

// workbookHeader names the summary sheet columns.
var workbookHeader = []string{
	"Organization", "Hint", "Resolved Name", "Rating", "Rating Count",
	"News Items", "Risks", "Opportunities", "Status",
}

// writeWorkbook renders one summary row per organization.
func writeWorkbook(path string, results []batchResult) error {
	wb := xlsx.NewFile()
	sheet, err := wb.AddSheet("Profiles")
	if err != nil {
		return eris.Wrap(err, "batch: add workbook sheet")
	}

	header := sheet.AddRow()
	for _, col := range workbookHeader {
		header.AddCell().Value = col
	}

	for _, res := range results {
		row := sheet.AddRow()
		row.AddCell().Value = res.Org.Name
		row.AddCell().Value = res.Org.Hint

		if res.Err != nil {
			// Pad the data columns so Status stays aligned.
			for i := 0; i < len(workbookHeader)-3; i++ {
				row.AddCell()
			}
			row.AddCell().Value = "error: " + res.Err.Error()
			continue
		}

		p := res.Profile
		resolved := ""
		if p.ResolvedName != nil {
			resolved = *p.ResolvedName
		}
		row.AddCell().Value = resolved

		rating, count := "", 0
		if p.Reviews != nil {
			if p.Reviews.Rating != nil {
				rating = strconv.FormatFloat(*p.Reviews.Rating, 'f', 1, 64)
			}
			count = p.Reviews.RatingCount
		}
		row.AddCell().Value = rating
		row.AddCell().SetInt(count)
		row.AddCell().SetInt(len(p.News))
		row.AddCell().Value = strings.Join(p.Risks, "; ")
		row.AddCell().Value = strings.Join(p.Opportunities, "; ")
		row.AddCell().Value = "ok"
	}

	if err := wb.Save(path); err != nil {
		return eris.Wrap(err, "batch: save workbook")
	}
	return nil
}

func init() {
	batchCmd.Flags().StringVar(&batchIn, "in", "", "input CSV with name[,hint] columns (required)")
	batchCmd.Flags().StringVar(&batchOutDir, "out-dir", "profiles", "directory for per-organization JSON files")
	batchCmd.Flags().StringVar(&batchXLSX, "xlsx", "", "write a summary workbook to this path")
	batchCmd.Flags().BoolVar(&batchPush, "push", false, "bulk-update matching Salesforce accounts")
	_ = batchCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(batchCmd)
}
