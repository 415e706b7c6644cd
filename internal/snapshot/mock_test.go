package snapshot

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubDownloader serves canned bodies or errors per URL and records calls.
// etags maps a URL to the tag the server advertises; a conditional request
// carrying a matching tag gets a not-modified answer.
type stubDownloader struct {
	calls     []string
	condCalls []string
	bodies    map[string]string
	errs      map[string]error
	etags     map[string]string
}

var _ Downloader = (*stubDownloader)(nil)

func (d *stubDownloader) Download(_ context.Context, url string) (io.ReadCloser, error) {
	d.calls = append(d.calls, url)
	if err := d.errs[url]; err != nil {
		return nil, err
	}
	body, ok := d.bodies[url]
	if !ok {
		return nil, fmt.Errorf("no body for %s", url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (d *stubDownloader) DownloadIfChanged(_ context.Context, url string, etag string) (io.ReadCloser, string, bool, error) {
	d.calls = append(d.calls, url)
	d.condCalls = append(d.condCalls, etag)
	if err := d.errs[url]; err != nil {
		return nil, "", false, err
	}
	current := d.etags[url]
	if etag != "" && etag == current {
		return nil, etag, false, nil
	}
	body, ok := d.bodies[url]
	if !ok {
		return nil, "", false, fmt.Errorf("no body for %s", url)
	}
	return io.NopCloser(strings.NewReader(body)), current, true, nil
}

// stubStore records writes in memory and returns canned errors.
type stubStore struct {
	mu        sync.Mutex
	upserts   [][]Facility
	upsertErr error
	names     []string
	saved     []*model.Profile
	profiles  map[string][]byte
	statuses  []SyncStatus
	recordErr error
	status    *SyncStatus
	closed    bool
}

var _ Store = (*stubStore)(nil)

func (s *stubStore) UpsertFacilities(_ context.Context, facilities []Facility) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	batch := make([]Facility, len(facilities))
	copy(batch, facilities)
	s.upserts = append(s.upserts, batch)
	return len(batch), nil
}

func (s *stubStore) SearchNames(_ context.Context, query string, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, n := range s.names {
		if strings.Contains(strings.ToLower(n), strings.ToLower(query)) {
			out = append(out, n)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *stubStore) AllNames(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...), nil
}

func (s *stubStore) SaveProfile(_ context.Context, p *model.Profile) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, p)
	return fmt.Sprintf("profile-%d", len(s.saved)), nil
}

func (s *stubStore) GetProfile(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile not found: %s", id)
	}
	return data, nil
}

func (s *stubStore) RecordSync(_ context.Context, status SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *stubStore) Status(_ context.Context) (*SyncStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, nil
}

func (s *stubStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
