package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSONLDSingleObject(t *testing.T) {
	t.Parallel()

	html := `<html><head><script type="application/ld+json">
	{"@context":"https://schema.org","@type":"JobPosting","title":"Platform Engineer",
	 "url":"/careers/platform-engineer","identifier":{"@type":"PropertyValue","value":"PE-42"},
	 "jobLocation":{"@type":"Place","address":{"addressLocality":"Denver","addressRegion":"CO","addressCountry":{"name":"US"}}},
	 "occupationalCategory":"Engineering","description":"<p>Build <b>platforms</b></p>","datePosted":"2024-02-03"}
	</script></head><body></body></html>`

	got, method, err := New(nil).Extract("https://acme.com/careers", html)
	require.NoError(t, err)
	require.Equal(t, MethodJSONLD, method)
	require.Len(t, got, 1)
	require.Equal(t, "PE-42", got[0].ExternalID)
	require.Equal(t, "Platform Engineer", got[0].Title)
	require.Equal(t, "https://acme.com/careers/platform-engineer", got[0].URL)
	require.Equal(t, "Denver, CO, US", got[0].Location)
	require.False(t, got[0].Remote)
	require.Equal(t, "Engineering", got[0].Department)
	require.Equal(t, "Build platforms", got[0].Description)
	require.NotNil(t, got[0].PostedAt)
}

func TestExtractJSONLDArrayAndGraph(t *testing.T) {
	t.Parallel()

	html := `<html><head>
	<script type="application/ld+json">[
	  {"@type":"Organization","name":"Acme"},
	  {"@type":"JobPosting","title":"Data Scientist","url":"https://acme.com/jobs/1001","jobLocationType":"TELECOMMUTE"}
	]</script>
	<script type="application/ld+json">{"@context":"https://schema.org","@graph":[
	  {"@type":"WebPage","name":"Careers"},
	  {"@type":["JobPosting"],"title":"Analyst","url":"https://acme.com/jobs/1002","jobLocation":[{"address":"Remote, EU"}]}
	]}</script>
	<script type="application/ld+json">{not json</script>
	</head><body><div class="job-card"><h3>Ignored</h3></div></body></html>`

	got, method, err := New(nil).Extract("https://acme.com/careers", html)
	require.NoError(t, err)
	require.Equal(t, MethodJSONLD, method)
	require.Len(t, got, 2)

	require.Equal(t, "1001", got[0].ExternalID)
	require.True(t, got[0].Remote)
	require.Equal(t, "Remote", got[0].Location)

	require.Equal(t, "1002", got[1].ExternalID)
	require.True(t, got[1].Remote)
	require.Equal(t, "Remote, EU", got[1].Location)
}

func TestExtractHeuristicFirstFamilyWins(t *testing.T) {
	t.Parallel()

	html := `<html><head><base href="https://jobs.acme.com/en/"></head><body>
	<nav><a href="/about">About us</a></nav>
	<ul>
	  <li class="job-card"><a href="positions/555"><h3>Backend Engineer</h3></a><span class="location">Austin, TX</span></li>
	  <li class="job-card"><a href="positions/555"><h3>Backend Engineer</h3></a></li>
	  <li class="job-card"><a href="/openings/security-lead">Security Lead</a><div class="job-location">Remote</div>
	      <span class="department">Security</span></li>
	  <li class="job-card"><a href="#">Careers</a></li>
	  <li class="job-card"><h4>Office Manager</h4></li>
	</ul>
	<div class="opening"><a href="/other/1">Should not be used</a></div>
	</body></html>`

	got, method, err := New(nil).Extract("https://acme.com/careers", html)
	require.NoError(t, err)
	require.Equal(t, MethodHeuristic, method)
	require.Len(t, got, 3)

	require.Equal(t, "555", got[0].ExternalID)
	require.Equal(t, "https://jobs.acme.com/en/positions/555", got[0].URL)
	require.Equal(t, "Austin, TX", got[0].Location)
	require.False(t, got[0].Remote)

	require.Equal(t, "Security Lead", got[1].Title)
	require.Equal(t, "https://jobs.acme.com/openings/security-lead", got[1].URL)
	require.Contains(t, got[1].ExternalID, "url-")
	require.True(t, got[1].Remote)
	require.Equal(t, "Security", got[1].Department)

	require.Equal(t, "Office Manager", got[2].Title)
	require.Empty(t, got[2].URL)
	require.Contains(t, got[2].ExternalID, "title-")
}

func TestExtractAnchorFamily(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<a href="/jobs/1">Site Reliability Engineer</a>
	<a href="/jobs/2?src=list">Product Designer</a>
	<a href="/jobs/">View all jobs</a>
	</body></html>`

	got, method, err := New(nil).Extract("https://acme.com/careers", html)
	require.NoError(t, err)
	require.Equal(t, MethodHeuristic, method)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0].ExternalID)
	require.Equal(t, "2", got[1].ExternalID)
}

func TestExtractNothing(t *testing.T) {
	t.Parallel()

	got, method, err := New(nil).Extract("https://acme.com", `<html><body><p>We are not hiring.</p></body></html>`)
	require.NoError(t, err)
	require.Equal(t, MethodNone, method)
	require.Empty(t, got)
}

func TestValidTitle(t *testing.T) {
	t.Parallel()

	require.False(t, validTitle("QA"))
	require.True(t, validTitle("SRE"))
	require.False(t, validTitle("About Us"))
	require.False(t, validTitle("Privacy Policy"))
	require.False(t, validTitle("Load more »"))
	require.True(t, validTitle("Contact Center Specialist"))
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	require.False(t, validTitle(string(long)))
	require.True(t, validTitle(string(long[:199])))
}

func TestNumericID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://acme.com/jobs/123", "123", true},
		{"https://acme.com/careers/4567/senior-engineer", "4567", true},
		{"https://acme.com/apply?id=789", "789", true},
		{"https://acme.com/board?gh_jid=4242424&x=1", "4242424", true},
		{"https://acme.com/role/engineer-9876543", "", false},
		{"https://acme.com/role/9876543", "9876543", true},
		{"https://acme.com/jobs/engineer", "", false},
	}
	for _, tc := range tests {
		got, ok := numericID(tc.url)
		require.Equal(t, tc.ok, ok, tc.url)
		require.Equal(t, tc.want, got, tc.url)
	}
}

func TestExternalIDDeterministic(t *testing.T) {
	t.Parallel()

	e := New(nil)
	a := e.externalID("https://acme.com/roles/backend", "Backend", 0)
	b := e.externalID("https://acme.com/roles/backend", "Other", 3)
	require.Equal(t, a, b)
	require.Len(t, a, len("url-")+16)

	c := e.externalID("", "Backend", 0)
	d := e.externalID("", "Backend", 1)
	require.NotEqual(t, c, d)
}
