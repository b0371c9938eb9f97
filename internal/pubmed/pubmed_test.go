// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pubmed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
)

func TestBuildSearchQuery(t *testing.T) {
	base := "(" + GrantQuery() + ") AND (Sorger PK[LASTAU])"
	tests := []struct {
		name                  string
		keyword, author, year string
		want                  string
	}{
		{"author only", "", "Sorger PK", "", base},
		{"keyword", "spatial", "Sorger PK", "", "(" + base + ") AND (spatial)"},
		{"keyword and year", "spatial", "Sorger PK", "2023", "((" + base + ") AND (spatial)) AND (2023[pdat])"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSearchQuery(tt.keyword, tt.author, tt.year))
		})
	}
}

func TestGrantAndAuthorQuery(t *testing.T) {
	g := GrantQuery()
	assert.True(t, strings.HasPrefix(g, "CA233195[gr] OR "))
	assert.True(t, strings.HasSuffix(g, " OR HHSN261201500003I[gr]"))
	assert.Equal(t, len(AllGrants())-1, strings.Count(g, " OR "))

	a := AuthorQuery("")
	assert.Contains(t, a, "Cerami E[LASTAU]")
	assert.Equal(t, len(Authors)-1, strings.Count(a, " OR "))
}

const sampleXML = `<?xml version="1.0" ?>
<!DOCTYPE PubmedArticleSet PUBLIC "-//NLM//DTD PubMedArticle, 1st January 2024//EN" "https://dtd.nlm.nih.gov/ncbi/pubmed/out/pubmed_240101.dtd">
<PubmedArticleSet>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">111</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><Year>2023</Year></PubDate></JournalIssue>
          <Title>Nature</Title>
        </Journal>
        <ArticleTitle>Spatial <i>atlas</i> of tumors</ArticleTitle>
        <Abstract>
          <AbstractText Label="BACKGROUND">Tumors vary.</AbstractText>
          <AbstractText Label="RESULTS">We mapped <sup>3</sup> cohorts.</AbstractText>
        </Abstract>
        <AuthorList>
          <Author><LastName>Doe</LastName><Initials>J</Initials></Author>
          <Author><CollectiveName>HTAN</CollectiveName></Author>
          <Author><LastName>Roe</LastName></Author>
        </AuthorList>
      </Article>
    </MedlineCitation>
    <PubmedData>
      <ArticleIdList>
        <ArticleId IdType="pubmed">111</ArticleId>
        <ArticleId IdType="doi">10.1/abc</ArticleId>
      </ArticleIdList>
    </PubmedData>
  </PubmedArticle>
  <PubmedArticle>
    <MedlineCitation>
      <PMID Version="1">222</PMID>
      <Article>
        <Journal>
          <JournalIssue><PubDate><MedlineDate>2021 Jan-Feb</MedlineDate></PubDate></JournalIssue>
          <Title>Cell</Title>
        </Journal>
        <ArticleTitle>Second</ArticleTitle>
        <Abstract><AbstractText>Plain abstract.</AbstractText></Abstract>
      </Article>
    </MedlineCitation>
  </PubmedArticle>
</PubmedArticleSet>`

func TestParseArticles(t *testing.T) {
	arts, err := ParseArticles([]byte(sampleXML))
	require.NoError(t, err)
	require.Len(t, arts, 2)

	a := arts[0]
	assert.Equal(t, "111", a.PMID)
	assert.Equal(t, "Spatial atlas of tumors", a.Title)
	assert.Equal(t, []string{"Doe J", "Roe"}, a.Authors)
	assert.Equal(t, "Nature", a.Journal)
	assert.Equal(t, "2023", a.Year)
	assert.Equal(t, "10.1/abc", a.DOI)
	assert.Equal(t, "BACKGROUND: Tumors vary.\nRESULTS: We mapped 3 cohorts.", a.Abstract)

	b := arts[1]
	assert.Equal(t, "2021", b.Year)
	assert.Equal(t, "Plain abstract.", b.Abstract)
	assert.Empty(t, b.DOI)
	assert.NotNil(t, b.Authors)
}

func TestFormatText(t *testing.T) {
	a := Article{
		PMID:     "1",
		Title:    "T",
		Authors:  []string{"A", "B", "C", "D", "E", "F", "G"},
		Journal:  "J",
		Year:     "2020",
		DOI:      "10.1/x",
		Abstract: strings.Repeat("x", 310),
	}
	out := FormatText(a)
	assert.Contains(t, out, "PMID: 1\n")
	assert.Contains(t, out, "Authors: A, B, C, D, E, ... (+2 more)")
	assert.Contains(t, out, "Journal: J (2020)")
	assert.Contains(t, out, "DOI: https://doi.org/10.1/x")
	assert.Contains(t, out, "Abstract: "+strings.Repeat("x", 300)+"...")

	pmc := FormatText(Article{PMCID: "PMC9"})
	assert.True(t, strings.HasPrefix(pmc, "PMC: PMC9\n  Title: N/A"))
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *[]string) {
	t.Helper()
	var notes []string
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		WithNotifier(func(s string) { notes = append(notes, s) }),
	), &notes
}

func TestSearchAndFetch(t *testing.T) {
	c, notes := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, ToolName, q.Get("tool"))
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "pubmed", q.Get("db"))
			assert.Equal(t, "pub_date", q.Get("sort"))
			_, _ = w.Write([]byte(`{"esearchresult":{"count":"7","idlist":["111","222"]}}`))
		case "/efetch.fcgi":
			assert.Equal(t, "111,222", q.Get("id"))
			_, _ = w.Write([]byte(sampleXML))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	arts, err := c.Search(context.Background(), "spatial", "", "", 10)
	require.NoError(t, err)
	assert.Len(t, arts, 2)
	assert.Equal(t, []string{"Found 7 results, returning 2"}, *notes)
}

func TestSearchEmpty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"esearchresult":{"count":"0","idlist":[]}}`))
	})
	arts, err := c.Search(context.Background(), "", "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestFullText(t *testing.T) {
	c, notes := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			assert.Equal(t, "pmc", r.URL.Query().Get("db"))
			_, _ = w.Write([]byte(`{"esearchresult":{"count":"1","idlist":["555"]}}`))
		case "/esummary.fcgi":
			_, _ = w.Write([]byte(`{"result":{"uids":["555"],"555":{"title":"PMC title","source":"Src",
				"pubdate":"2022 Mar","articleids":[{"idtype":"pmid","value":"999"}],"authors":[{"name":"Doe J"}]}}}`))
		}
	})
	arts, err := c.FullText(context.Background(), "tumor", 5)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, Article{
		PMID: "999", PMCID: "PMC555", Title: "PMC title", Authors: []string{"Doe J"},
		Journal: "Src", Year: "2022",
	}, arts[0])
	assert.Equal(t, []string{"Found 1 PMC results, returning 1"}, *notes)
}

func TestHTTPError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Fetch(context.Background(), []string{"1"})
	require.Error(t, err)
	assert.Equal(t, "HTTP 429 from E-utilities: Too Many Requests", err.Error())
	assert.Equal(t, herrors.Server, herrors.KindOf(err))
}

func TestSearchURL(t *testing.T) {
	t.Setenv(APIKeyEnvVar, "")
	c := New()
	u, err := url.Parse(c.SearchURL("k", "", "", 20))
	require.NoError(t, err)
	assert.Equal(t, "/entrez/eutils/esearch.fcgi", u.Path)
	q := u.Query()
	assert.Equal(t, "20", q.Get("retmax"))
	assert.Equal(t, BuildSearchQuery("k", "", ""), q.Get("term"))
	assert.Equal(t, ToolEmail, q.Get("email"))
	assert.Empty(t, q.Get("api_key"))
}
