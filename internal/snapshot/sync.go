package snapshot

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/fetcher"
)

// Downloader is the transport Sync needs; *fetcher.Dispatcher satisfies it.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// SyncOptions carries the dataset endpoints.
type SyncOptions struct {
	URL       string // primary HTTPS endpoint
	MirrorURL string // optional ftp:// fallback
}

const upsertBatchSize = 500

// Sync downloads the Hospital General Information CSV, streams it into the
// store in batches, and records a sync run. Rows without a provider ID are
// skipped. The download is conditional on the previous run's ETag: when the
// dataset has not changed the parse and upsert are skipped and the previous
// status is returned as-is. Returns the recorded status.
func Sync(ctx context.Context, dl Downloader, store Store, opts SyncOptions) (*SyncStatus, error) {
	started := time.Now().UTC()

	prior, err := store.Status(ctx)
	if err != nil {
		return nil, err
	}
	var priorETag string
	if prior != nil {
		priorETag = prior.ETag
	}

	body, etag, changed, err := download(ctx, dl, opts, priorETag)
	if err != nil {
		return nil, err
	}
	if !changed {
		zap.L().Info("snapshot: dataset unchanged, skipping sync",
			zap.String("etag", etag))
		return prior, nil
	}
	defer body.Close()

	// Stop the stream goroutine if we bail out mid-file.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, body, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var (
		colIdx   map[string]int
		batch    = make([]Facility, 0, upsertBatchSize)
		total    int
		rowsSeen int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := store.UpsertFacilities(ctx, batch)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for row := range rowCh {
		if colIdx == nil {
			select {
			case header := <-headerCh:
				colIdx = indexColumns(header)
			default:
				return nil, eris.New("snapshot: csv missing header row")
			}
		}

		rowsSeen++
		f := rowFacility(colIdx, row)
		if f.ProviderID == "" {
			continue
		}
		batch = append(batch, f)
		if len(batch) >= upsertBatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}

	if total == 0 && rowsSeen > 0 {
		zap.L().Warn("snapshot: no facility rows recognized, header layout may have changed",
			zap.Int("rows_seen", rowsSeen))
	}

	status := SyncStatus{
		ID:         uuid.New().String(),
		RowCount:   total,
		ETag:       etag,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := store.RecordSync(ctx, status); err != nil {
		return nil, err
	}

	zap.L().Info("snapshot: sync complete",
		zap.Int("rows", total),
		zap.Duration("took", status.FinishedAt.Sub(status.StartedAt)),
	)
	return &status, nil
}

// download fetches the dataset conditionally from the primary endpoint and
// falls back to an unconditional mirror download on failure. The mirror has
// no ETag support, so its result always reports changed with an empty tag.
func download(ctx context.Context, dl Downloader, opts SyncOptions, etag string) (io.ReadCloser, string, bool, error) {
	body, newETag, changed, err := dl.DownloadIfChanged(ctx, opts.URL, etag)
	if err == nil {
		return body, newETag, changed, nil
	}
	if opts.MirrorURL == "" {
		return nil, "", false, eris.Wrap(err, "snapshot: download dataset")
	}

	zap.L().Warn("snapshot: primary download failed, trying mirror",
		zap.String("mirror", opts.MirrorURL), zap.Error(err))

	body, merr := dl.Download(ctx, opts.MirrorURL)
	if merr != nil {
		return nil, "", false, eris.Wrap(merr, "snapshot: download dataset mirror")
	}
	return body, "", true, nil
}

// indexColumns maps the dataset's column variants to canonical keys. CMS
// has renamed headers across releases ("Facility ID" vs "facility_id",
// "City/Town" vs "citytown"), so matching runs on a normalized form.
func indexColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		switch normalizeHeader(h) {
		case "facility_id", "provider_id":
			idx["provider_id"] = i
		case "facility_name", "hospital_name":
			idx["name"] = i
		case "hospital_type":
			idx["hospital_type"] = i
		case "hospital_ownership":
			idx["ownership"] = i
		case "address":
			idx["address"] = i
		case "city", "citytown", "city_town":
			idx["city"] = i
		case "state":
			idx["state"] = i
		case "zip_code":
			idx["zip_code"] = i
		case "telephone_number", "phone_number":
			idx["phone"] = i
		case "hospital_overall_rating":
			idx["overall_rating"] = i
		case "emergency_services":
			idx["emergency_services"] = i
		}
	}
	return idx
}

// normalizeHeader lowercases a header cell and collapses runs of
// non-alphanumeric characters to single underscores.
func normalizeHeader(h string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func rowFacility(idx map[string]int, row []string) Facility {
	cell := func(key string) string {
		i, ok := idx[key]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return Facility{
		ProviderID:        cell("provider_id"),
		Name:              cell("name"),
		HospitalType:      cell("hospital_type"),
		Ownership:         cell("ownership"),
		Address:           cell("address"),
		City:              cell("city"),
		State:             cell("state"),
		ZipCode:           cell("zip_code"),
		Phone:             cell("phone"),
		OverallRating:     cell("overall_rating"),
		EmergencyServices: cell("emergency_services"),
	}
}
