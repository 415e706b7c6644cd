package profile

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/profiler-cli/internal/config"
	"github.com/sells-group/profiler-cli/internal/model"
	"github.com/sells-group/profiler-cli/pkg/carecompare"
	"github.com/sells-group/profiler-cli/pkg/jina"
)

// MetricsProbe runs the best-effort supplemental lookups whose results land
// in Profile.DerivedMetrics: HCAHPS patient-experience measures for the
// matched facility, and a reachability probe of the directory website.
// Either client may be nil; the corresponding probe is skipped.
type MetricsProbe struct {
	CMS  carecompare.Client
	Jina jina.Client
}

// NewMetricsProbe wires the probe clients from config. The regulatory client
// is shared with the adapters; the website reader is built only when its key
// is configured.
func NewMetricsProbe(cfg *config.Config, httpc *http.Client, cms carecompare.Client) *MetricsProbe {
	p := &MetricsProbe{CMS: cms}
	if cfg.Jina.Key != "" {
		p.Jina = jina.NewClient(cfg.Jina.Key,
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithHTTPClient(httpc),
		)
	}
	return p
}

// Collect gathers derived metrics for the resolved records. Failures are
// silent: a failed HCAHPS pull contributes nothing, a failed website read
// records reachable=false.
func (m *MetricsProbe) Collect(ctx context.Context, reg model.Outcome[model.RegulatoryRecord], dir model.Outcome[model.DirectoryRecord]) map[string]map[string]any {
	metrics := make(map[string]map[string]any)

	if rec, ok := reg.Get(); ok && rec.ProviderID != "" && m.CMS != nil {
		if hcahps := m.collectHCAHPS(ctx, rec.ProviderID); hcahps != nil {
			metrics["hcahps"] = hcahps
		}
	}

	if rec, ok := dir.Get(); ok && rec.Website != "" && m.Jina != nil {
		metrics["website"] = m.probeWebsite(ctx, rec.Website)
	}

	return metrics
}

func (m *MetricsProbe) collectHCAHPS(ctx context.Context, facilityID string) map[string]any {
	measures, err := m.CMS.HCAHPS(ctx, facilityID)
	if err != nil {
		zap.L().Debug("hcahps probe failed",
			zap.String("facility_id", facilityID),
			zap.Error(err),
		)
		return nil
	}
	if len(measures) == 0 {
		return nil
	}

	stars := make(map[string]string)
	var completedSurveys, responseRate string
	for _, ms := range measures {
		if ms.StarRating != "" && ms.StarRating != "Not Applicable" {
			stars[ms.MeasureID] = ms.StarRating
		}
		if completedSurveys == "" && ms.CompletedSurveys != "" {
			completedSurveys = ms.CompletedSurveys
		}
		if responseRate == "" && ms.ResponseRatePercent != "" {
			responseRate = ms.ResponseRatePercent
		}
	}

	out := map[string]any{
		"facility_id":   facilityID,
		"measure_count": len(measures),
	}
	if len(stars) > 0 {
		out["star_ratings"] = stars
	}
	if completedSurveys != "" {
		out["completed_surveys"] = completedSurveys
	}
	if responseRate != "" {
		out["response_rate_percent"] = responseRate
	}
	return out
}

func (m *MetricsProbe) probeWebsite(ctx context.Context, site string) map[string]any {
	resp, err := m.Jina.Read(ctx, site)
	if err != nil {
		zap.L().Debug("website probe failed",
			zap.String("website", site),
			zap.Error(err),
		)
		return map[string]any{"url": site, "reachable": false}
	}
	return map[string]any{
		"url":            site,
		"reachable":      true,
		"title":          resp.Data.Title,
		"content_length": len(resp.Data.Content),
	}
}
