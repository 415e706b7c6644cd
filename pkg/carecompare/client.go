// Package carecompare is a client for the CMS Care Compare provider-data
// datastore API (data.cms.gov/provider-data). The API is public and needs
// no credential; queries go to per-dataset endpoints identified by the
// dataset's distribution ID.
package carecompare

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL = "https://data.cms.gov/provider-data/api/1"

	// Dataset IDs on data.cms.gov. The general-information dataset keys
	// records by provider_id/hospital_name; the HCAHPS dataset by
	// facility_id. The mismatch is the datasets', not ours.
	defaultGeneralDatasetID = "xubh-q36u"
	defaultHCAHPSDatasetID  = "dgck-syfz"
)

// Client performs Care Compare datastore queries.
type Client interface {
	SearchHospitals(ctx context.Context, name string, limit int) ([]Hospital, error)
	HCAHPS(ctx context.Context, facilityID string) ([]HCAHPSMeasure, error)
}

// Hospital is one row of the hospital general-information dataset. All
// values arrive as strings, including the overall rating ("1".."5" or
// "Not Available").
type Hospital struct {
	ProviderID            string `json:"provider_id"`
	HospitalName          string `json:"hospital_name"`
	HospitalType          string `json:"hospital_type"`
	HospitalOwnership     string `json:"hospital_ownership"`
	Address               string `json:"address"`
	City                  string `json:"city"`
	State                 string `json:"state"`
	ZipCode               string `json:"zip_code"`
	PhoneNumber           string `json:"phone_number"`
	HospitalOverallRating string `json:"hospital_overall_rating"`
	EmergencyServices     string `json:"emergency_services"`
}

// HCAHPSMeasure is one row of the HCAHPS patient-survey dataset for a
// single facility and measure.
type HCAHPSMeasure struct {
	FacilityID          string `json:"facility_id"`
	MeasureID           string `json:"hcahps_measure_id"`
	Question            string `json:"hcahps_question"`
	AnswerPercent       string `json:"hcahps_answer_percent"`
	StarRating          string `json:"patient_survey_star_rating"`
	CompletedSurveys    string `json:"number_of_completed_surveys"`
	ResponseRatePercent string `json:"survey_response_rate_percent"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithDatasetIDs overrides the dataset distribution IDs, which rotate when
// CMS republishes a dataset.
func WithDatasetIDs(general, hcahps string) Option {
	return func(c *httpClient) {
		c.generalID = general
		c.hcahpsID = hcahps
	}
}

type httpClient struct {
	baseURL   string
	generalID string
	hcahpsID  string
	http      *http.Client
}

// NewClient creates a Care Compare datastore client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		generalID: defaultGeneralDatasetID,
		hcahpsID:  defaultHCAHPSDatasetID,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type hospitalQueryResponse struct {
	Results []Hospital `json:"results"`
	Count   int        `json:"count"`
}

type hcahpsQueryResponse struct {
	Results []HCAHPSMeasure `json:"results"`
	Count   int             `json:"count"`
}

// SearchHospitals queries the general-information dataset with a free-text
// filter on hospital_name, capped at limit rows.
func (c *httpClient) SearchHospitals(ctx context.Context, name string, limit int) ([]Hospital, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("conditions[0][property]", "hospital_name")
	q.Set("conditions[0][value]", "%"+name+"%")
	q.Set("conditions[0][operator]", "like")

	respBody, err := c.get(ctx, c.generalID, q)
	if err != nil {
		return nil, err
	}

	var result hospitalQueryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "carecompare: unmarshal response")
	}

	return result.Results, nil
}

// HCAHPS returns all patient-survey measure rows for one facility.
func (c *httpClient) HCAHPS(ctx context.Context, facilityID string) ([]HCAHPSMeasure, error) {
	q := url.Values{}
	q.Set("conditions[0][property]", "facility_id")
	q.Set("conditions[0][value]", facilityID)
	q.Set("conditions[0][operator]", "=")

	respBody, err := c.get(ctx, c.hcahpsID, q)
	if err != nil {
		return nil, err
	}

	var result hcahpsQueryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "carecompare: unmarshal response")
	}

	return result.Results, nil
}

func (c *httpClient) get(ctx context.Context, datasetID string, q url.Values) ([]byte, error) {
	u := c.baseURL + "/datastore/query/" + datasetID + "/0?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, eris.Wrap(err, "carecompare: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "carecompare: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "carecompare: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("carecompare: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
