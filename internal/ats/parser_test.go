package ats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobcrawler/internal/jobs"
)

func newTestClient() *Client {
	return NewClient(ClientConfig{Timeout: 2 * time.Second, UserAgent: "jobcrawler-test"}, nil, zap.NewNop())
}

func serveJSON(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractToken(t *testing.T) {
	t.Parallel()

	client := newTestClient()
	tests := []struct {
		name   string
		parser Parser
		url    string
		want   string
		ok     bool
	}{
		{"greenhouse boards", NewGreenhouse(client, ""), "https://boards.greenhouse.io/acme", "acme", true},
		{"greenhouse job boards", NewGreenhouse(client, ""), "https://job-boards.greenhouse.io/acme/jobs/123", "acme", true},
		{"greenhouse embed", NewGreenhouse(client, ""), "https://boards.greenhouse.io/embed/job_board?for=acme&b=x", "acme", true},
		{"greenhouse subdomain", NewGreenhouse(client, ""), "https://acme.greenhouse.io/", "acme", true},
		{"greenhouse bare host", NewGreenhouse(client, ""), "https://boards.greenhouse.io/", "", false},
		{"greenhouse unrelated", NewGreenhouse(client, ""), "https://acme.com/careers", "", false},
		{"lever", NewLever(client, ""), "https://jobs.lever.co/acme", "acme", true},
		{"lever eu posting", NewLever(client, ""), "https://jobs.eu.lever.co/acme/1a2b", "acme", true},
		{"lever unrelated", NewLever(client, ""), "https://lever.co", "", false},
		{"ashby", NewAshby(client, ""), "https://jobs.ashbyhq.com/Acme%20Labs/abc", "Acme Labs", true},
		{"smartrecruiters", NewSmartRecruiters(client, ""), "https://careers.smartrecruiters.com/AcmeCorp", "AcmeCorp", true},
		{"smartrecruiters jobs", NewSmartRecruiters(client, ""), "https://jobs.smartrecruiters.com/AcmeCorp/7437", "AcmeCorp", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := tc.parser.ExtractToken(tc.url)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestGreenhouseParse(t *testing.T) {
	t.Parallel()

	srv := serveJSON(t, map[string]string{
		"/v1/boards/acme/jobs?content=true": `{"jobs":[
			{"id":101,"title":" Staff Engineer ","absolute_url":"https://boards.greenhouse.io/acme/jobs/101",
			 "location":{"name":"Remote - US"},"departments":[{"name":"Engineering"}],
			 "content":"&lt;p&gt;Write &lt;b&gt;Rust&lt;/b&gt;&lt;/p&gt;","updated_at":"2024-03-01T10:00:00-05:00"},
			{"id":102,"title":"Designer","absolute_url":"https://boards.greenhouse.io/acme/jobs/102",
			 "location":{"name":"San Francisco, CA"},"departments":[],"content":"","updated_at":""}
		]}`,
	})
	g := NewGreenhouse(newTestClient(), srv.URL)

	got, err := g.Parse(context.Background(), "https://boards.greenhouse.io/acme")
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "101", got[0].ExternalID)
	require.Equal(t, "Staff Engineer", got[0].Title)
	require.True(t, got[0].Remote)
	require.Equal(t, "Engineering", got[0].Department)
	require.Equal(t, "Write Rust", got[0].Description)
	require.NotNil(t, got[0].PostedAt)
	require.Equal(t, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC), *got[0].PostedAt)

	require.False(t, got[1].Remote)
	require.Nil(t, got[1].PostedAt)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/boards/broken/jobs", "/v0/postings/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	client := newTestClient()

	_, err := NewGreenhouse(client, srv.URL).Parse(context.Background(), "https://boards.greenhouse.io/missing")
	var vendorErr *jobs.VendorAPIError
	require.ErrorAs(t, err, &vendorErr)
	require.True(t, vendorErr.NotFound)
	require.Equal(t, "Greenhouse board not found", err.Error())

	_, err = NewLever(client, srv.URL).Parse(context.Background(), "https://jobs.lever.co/missing")
	require.EqualError(t, err, "Lever company not found")

	_, err = NewLever(client, srv.URL).Parse(context.Background(), "https://jobs.lever.co/broken")
	require.ErrorAs(t, err, &vendorErr)
	require.False(t, vendorErr.NotFound)
	require.Equal(t, http.StatusBadGateway, vendorErr.StatusCode)
	require.Contains(t, err.Error(), "502 Bad Gateway")

	_, err = NewGreenhouse(client, srv.URL).Parse(context.Background(), "https://acme.example.com/careers")
	var tokenErr *jobs.TokenExtractionError
	require.ErrorAs(t, err, &tokenErr)
	require.Equal(t, jobs.ATSGreenhouse, tokenErr.ATSType)
}

func TestParseDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := NewLever(newTestClient(), srv.URL).Parse(context.Background(), "https://jobs.lever.co/acme")
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestLeverParse(t *testing.T) {
	t.Parallel()

	srv := serveJSON(t, map[string]string{
		"/v0/postings/acme?mode=json": `[
			{"id":"a1","text":"Backend Engineer","hostedUrl":"https://jobs.lever.co/acme/a1","createdAt":1700000000000,
			 "workplaceType":"remote","categories":{"location":"Berlin","team":"Platform"},
			 "description":"<div>Own <i>APIs</i></div>"},
			{"id":"a2","text":"Support","hostedUrl":"https://jobs.lever.co/acme/a2","createdAt":0,
			 "categories":{"location":"Work from home","department":"CX","team":"Tier 1"},"descriptionPlain":"Help people"}
		]`,
	})
	got, err := NewLever(newTestClient(), srv.URL).Parse(context.Background(), "https://jobs.lever.co/acme")
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.Equal(t, "a1", got[0].ExternalID)
	require.True(t, got[0].Remote)
	require.Equal(t, "Platform", got[0].Department)
	require.Equal(t, "Own APIs", got[0].Description)
	require.Equal(t, time.UnixMilli(1700000000000).UTC(), *got[0].PostedAt)

	require.True(t, got[1].Remote)
	require.Equal(t, "CX", got[1].Department)
	require.Equal(t, "Help people", got[1].Description)
	require.Nil(t, got[1].PostedAt)
}

func TestAshbyParseSkipsUnlisted(t *testing.T) {
	t.Parallel()

	srv := serveJSON(t, map[string]string{
		"/posting-api/job-board/acme?includeCompensation=false": `{"jobs":[
			{"id":"j1","title":"SRE","location":"Toronto","department":"Infra","isRemote":true,
			 "descriptionHtml":"<p>Keep it up</p>","publishedAt":"2024-05-01T00:00:00.000+00:00","jobUrl":"https://jobs.ashbyhq.com/acme/j1"},
			{"id":"j2","title":"Hidden","isListed":false}
		]}`,
	})
	got, err := NewAshby(newTestClient(), srv.URL).Parse(context.Background(), "https://jobs.ashbyhq.com/acme")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "j1", got[0].ExternalID)
	require.True(t, got[0].Remote)
	require.Equal(t, "Keep it up", got[0].Description)
	require.NotNil(t, got[0].PostedAt)
}

func TestSmartRecruitersPaginates(t *testing.T) {
	t.Parallel()

	page := func(ids ...string) string {
		body := `{"totalFound":102,"content":[`
		for i, id := range ids {
			if i > 0 {
				body += ","
			}
			body += `{"id":"` + id + `","name":"Role ` + id + `","releasedDate":"2024-01-02T03:04:05.000Z",` +
				`"location":{"city":"Austin","region":"TX","country":"us","remote":false},"department":{"label":"Sales"}}`
		}
		return body + `]}`
	}
	first := make([]string, 100)
	for i := range first {
		first[i] = strconv.Itoa(i)
	}
	srv := serveJSON(t, map[string]string{
		"/v1/companies/AcmeCorp/postings?limit=100&offset=0":   page(first...),
		"/v1/companies/AcmeCorp/postings?limit=100&offset=100": page("100", "101"),
	})
	got, err := NewSmartRecruiters(newTestClient(), srv.URL).Parse(context.Background(), "https://careers.smartrecruiters.com/AcmeCorp")
	require.NoError(t, err)
	require.Len(t, got, 102)
	require.Equal(t, "Austin, TX, US", got[0].Location)
	require.Equal(t, "https://jobs.smartrecruiters.com/AcmeCorp/101", got[101].URL)
	require.False(t, got[0].Remote)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry(newTestClient(), BaseURLs{})
	for _, typ := range []jobs.ATSType{jobs.ATSGreenhouse, jobs.ATSLever, jobs.ATSAshby, jobs.ATSSmartRecruiters} {
		p, ok := r.For(typ)
		require.True(t, ok, typ)
		require.Equal(t, typ, p.ATSType())
		require.True(t, r.IsAPI(typ))
	}
	require.False(t, r.IsAPI(jobs.ATSWorkday))
	require.False(t, r.IsAPI(jobs.ATSCustom))
	require.Equal(t, []jobs.ATSType{jobs.ATSAshby, jobs.ATSGreenhouse, jobs.ATSLever, jobs.ATSSmartRecruiters}, r.Types())

	var nilRegistry *Registry
	require.False(t, nilRegistry.IsAPI(jobs.ATSLever))
}
