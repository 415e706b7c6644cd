package profile

import (
	"context"

	"github.com/sells-group/profiler-cli/pkg/bingnews"
	"github.com/sells-group/profiler-cli/pkg/carecompare"
	"github.com/sells-group/profiler-cli/pkg/jina"
	"github.com/sells-group/profiler-cli/pkg/places"
)

// stubPlaces implements places.Client with canned responses and recorded
// call state.
type stubPlaces struct {
	searchCalls   int
	searchQueries []string
	searchResp    *places.TextSearchResponse
	searchErr     error

	detailCalls int
	detailIDs   []string
	detailResp  *places.Place
	detailErr   error
}

var _ places.Client = (*stubPlaces)(nil)

func (s *stubPlaces) TextSearch(_ context.Context, query string) (*places.TextSearchResponse, error) {
	s.searchCalls++
	s.searchQueries = append(s.searchQueries, query)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if s.searchResp != nil {
		return s.searchResp, nil
	}
	return &places.TextSearchResponse{}, nil
}

func (s *stubPlaces) Details(_ context.Context, placeID string) (*places.Place, error) {
	s.detailCalls++
	s.detailIDs = append(s.detailIDs, placeID)
	if s.detailErr != nil {
		return nil, s.detailErr
	}
	if s.detailResp != nil {
		return s.detailResp, nil
	}
	return &places.Place{}, nil
}

// stubCMS implements carecompare.Client.
type stubCMS struct {
	searchCalls  int
	searchNames  []string
	searchLimits []int
	hospitals    []carecompare.Hospital
	searchErr    error

	hcahpsCalls int
	hcahpsIDs   []string
	measures    []carecompare.HCAHPSMeasure
	hcahpsErr   error
}

var _ carecompare.Client = (*stubCMS)(nil)

func (s *stubCMS) SearchHospitals(_ context.Context, name string, limit int) ([]carecompare.Hospital, error) {
	s.searchCalls++
	s.searchNames = append(s.searchNames, name)
	s.searchLimits = append(s.searchLimits, limit)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.hospitals, nil
}

func (s *stubCMS) HCAHPS(_ context.Context, facilityID string) ([]carecompare.HCAHPSMeasure, error) {
	s.hcahpsCalls++
	s.hcahpsIDs = append(s.hcahpsIDs, facilityID)
	if s.hcahpsErr != nil {
		return nil, s.hcahpsErr
	}
	return s.measures, nil
}

// stubNews implements bingnews.Client.
type stubNews struct {
	calls   int
	queries []string
	counts  []int
	resp    *bingnews.SearchResponse
	err     error
}

var _ bingnews.Client = (*stubNews)(nil)

func (s *stubNews) Search(_ context.Context, query string, count int) (*bingnews.SearchResponse, error) {
	s.calls++
	s.queries = append(s.queries, query)
	s.counts = append(s.counts, count)
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &bingnews.SearchResponse{}, nil
}

// stubJina implements jina.Client.
type stubJina struct {
	calls int
	urls  []string
	resp  *jina.ReadResponse
	err   error
}

var _ jina.Client = (*stubJina)(nil)

func (s *stubJina) Read(_ context.Context, targetURL string) (*jina.ReadResponse, error) {
	s.calls++
	s.urls = append(s.urls, targetURL)
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &jina.ReadResponse{Code: 200}, nil
}

func ratingPtr(v float64) *float64 {
	return &v
}

// mercyPlace is a fully populated details response shared across adapter and
// builder tests.
func mercyPlace() *places.Place {
	return &places.Place{
		ID:                  "place-mercy",
		DisplayName:         places.DisplayName{Text: "Mercy General Hospital"},
		FormattedAddress:    "4001 J St, Sacramento, CA 95819",
		NationalPhoneNumber: "(916) 453-4545",
		WebsiteURI:          "https://www.dignityhealth.org/mercy-general",
		GoogleMapsURI:       "https://maps.google.com/?cid=123",
		Rating:              ratingPtr(3.9),
		UserRatingCount:     412,
		Reviews: []places.Review{
			{
				RelativePublishTimeDescription: "2 weeks ago",
				Rating:                         ratingPtr(5),
				Text:                           places.ReviewText{Text: "Outstanding cardiac care, the nurses were attentive and kind."},
				AuthorAttribution:              places.AuthorAttribution{DisplayName: "A. Reviewer"},
			},
			{
				RelativePublishTimeDescription: "a month ago",
				Rating:                         ratingPtr(2),
				Text:                           places.ReviewText{Text: "Billing department kept sending duplicate invoices for months."},
				AuthorAttribution:              places.AuthorAttribution{DisplayName: "B. Reviewer"},
			},
			{
				RelativePublishTimeDescription: "3 months ago",
				Rating:                         ratingPtr(4),
				Text:                           places.ReviewText{Text: "Long wait in the emergency department but excellent doctors."},
				AuthorAttribution:              places.AuthorAttribution{DisplayName: "C. Reviewer"},
			},
		},
	}
}

// mercyHospitals is a regulatory candidate list where the second row is the
// obvious token-overlap winner.
func mercyHospitals() []carecompare.Hospital {
	return []carecompare.Hospital{
		{
			ProviderID:   "050017",
			HospitalName: "MERCY SAN JUAN MEDICAL CENTER",
			City:         "CARMICHAEL",
			State:        "CA",
		},
		{
			ProviderID:            "050077",
			HospitalName:          "MERCY GENERAL HOSPITAL",
			HospitalType:          "Acute Care Hospitals",
			HospitalOwnership:     "Voluntary non-profit - Church",
			Address:               "4001 J STREET",
			City:                  "SACRAMENTO",
			State:                 "CA",
			ZipCode:               "95819",
			PhoneNumber:           "(916) 453-4545",
			HospitalOverallRating: "4",
			EmergencyServices:     "Yes",
		},
	}
}
