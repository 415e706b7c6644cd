package main

import (
	"context"
	"os"
	"time"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profiler-cli/internal/fetcher"
	"github.com/sells-group/profiler-cli/internal/snapshot"
	sfpkg "github.com/sells-group/profiler-cli/pkg/salesforce"
)

// bulkTimeout bounds one snapshot download; dataset files run far larger
// than API responses.
const bulkTimeout = 5 * time.Minute

func initSnapshotStore(ctx context.Context) (snapshot.Store, error) {
	return snapshot.Open(ctx, cfg)
}

// initDispatcher builds the bulk download dispatcher used by snapshot sync.
// The FTP side serves mirror URLs.
func initDispatcher() *fetcher.Dispatcher {
	httpf := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      bulkTimeout,
		MaxRetries:   cfg.Fetch.MaxRetries,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	ftpf := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: bulkTimeout})
	return fetcher.NewDispatcher(httpf, ftpf)
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		return nil, eris.New("salesforce client ID is required (PROFILER_SALESFORCE_CLIENT_ID)")
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforce.Init(salesforce.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf), nil
}
