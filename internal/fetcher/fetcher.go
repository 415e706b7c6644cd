// Package fetcher downloads remote data over HTTP and FTP and provides the
// memoizing transport that all API clients share.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Dispatcher routes downloads to the HTTP or FTP fetcher by URL scheme.
// Consumers declare the download surface they need (snapshot.Downloader);
// Dispatcher satisfies it.
type Dispatcher struct {
	HTTP *HTTPFetcher
	FTP  *FTPFetcher
}

// NewDispatcher creates a Dispatcher over the given fetchers.
func NewDispatcher(h *HTTPFetcher, f *FTPFetcher) *Dispatcher {
	return &Dispatcher{HTTP: h, FTP: f}
}

// Download routes to the scheme-appropriate fetcher.
func (d *Dispatcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch u.Scheme {
	case "http", "https":
		return d.HTTP.Download(ctx, rawURL)
	case "ftp":
		return d.FTP.Download(ctx, rawURL)
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// DownloadIfChanged routes to the HTTP fetcher; FTP has no ETag support, so
// ftp URLs always download and report changed.
func (d *Dispatcher) DownloadIfChanged(ctx context.Context, rawURL string, etag string) (io.ReadCloser, string, bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", false, eris.Wrap(err, "fetcher: parse url")
	}
	if u.Scheme == "ftp" {
		body, err := d.FTP.Download(ctx, rawURL)
		if err != nil {
			return nil, "", false, err
		}
		return body, "", true, nil
	}
	return d.HTTP.DownloadIfChanged(ctx, rawURL, etag)
}
