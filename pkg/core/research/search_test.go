package research

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerplexitySearch_Query(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pplx-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"The DTSA provides a civil action."}}],"citations":["https://law.cornell.edu/uscode/text/18/1836"]}`))
	}))
	defer srv.Close()

	p := &PerplexitySearch{APIKey: "pplx-test", BaseURL: srv.URL}
	res, err := p.Query(context.Background(), "DTSA elements", LegalSources)
	require.NoError(t, err)

	assert.Equal(t, "The DTSA provides a civil action.", res.Text)
	assert.Equal(t, []string{"https://law.cornell.edu/uscode/text/18/1836"}, res.Sources)
	assert.Equal(t, "sonar-pro", got["model"])
	assert.Equal(t, true, got["return_citations"])
	assert.Len(t, got["search_domain_filter"], len(LegalSources))
}

func TestPerplexitySearch_NoDomainFilter(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	p := &PerplexitySearch{APIKey: "k", BaseURL: srv.URL}
	_, err := p.Query(context.Background(), "anything", nil)
	require.NoError(t, err)
	_, present := got["search_domain_filter"]
	assert.False(t, present)
}

func TestPerplexitySearch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	p := &PerplexitySearch{APIKey: "k", BaseURL: srv.URL}
	_, err := p.Query(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PERPLEXITY_API_ERROR: status=401")

	t.Setenv("PERPLEXITY_API_KEY", "")
	_, err = (&PerplexitySearch{BaseURL: srv.URL}).Query(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PERPLEXITY_API_KEY_MISSING")
}

func TestPageText(t *testing.T) {
	html := `<html><head><style>p{}</style><script>var x = 1;</script></head>
<body><nav><p>Menu item</p></nav>
<main><h1>18 U.S. Code 1836</h1><p>An owner of a trade secret   that is misappropriated may bring a civil action.</p>
<div hidden><p>secret banner</p></div><ul><li>Injunction</li></ul></main>
<footer><p>Copyright</p></footer></body></html>`

	text, err := pageText(html, 0)
	require.NoError(t, err)
	assert.Equal(t, "18 U.S. Code 1836\nAn owner of a trade secret that is misappropriated may bring a civil action.\nInjunction", text)

	short, err := pageText(html, 10)
	require.NoError(t, err)
	assert.Equal(t, "18 U.S. Co", short)
}

func TestResultLinks(t *testing.T) {
	html := `<html><body>
<a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.justia.com%2Fcase1&rut=x">Case 1</a>
<a class="result__a" href="https://casetext.com/case2">Case 2</a>
<a class="result__a" href="https://casetext.com/case2">Dup</a>
<a class="result__a" href="/relative">Relative</a>
<a class="result__a" href="https://courtlistener.com/case3">Case 3</a>
</body></html>`

	assert.Equal(t, []string{"https://www.justia.com/case1", "https://casetext.com/case2"}, resultLinks(html, 2))
	assert.Len(t, resultLinks(html, 0), 3)
}

func TestBrowserSearch_Sources(t *testing.T) {
	var visited []string
	b := &BrowserSearch{Fetch: func(ctx context.Context, pageURL string) (string, error) {
		visited = append(visited, pageURL)
		if strings.Contains(pageURL, "broken") {
			return "", errors.New("timeout")
		}
		return `<html><body><p>Holding of ` + pageURL + `</p></body></html>`, nil
	}}

	res, err := b.Query(context.Background(), "trade secret", []string{"https://a.example/x", "https://broken.example", "law.cornell.edu"})
	require.NoError(t, err)

	require.Len(t, visited, 3)
	assert.Equal(t, "https://a.example/x", visited[0])
	assert.True(t, strings.HasPrefix(visited[2], defaultSearchURL))
	assert.Contains(t, visited[2], "site%3Alaw.cornell.edu")
	assert.Equal(t, []string{"https://a.example/x", visited[2]}, res.Sources)
	assert.Contains(t, res.Text, "Source: https://a.example/x\nHolding of https://a.example/x")
}

func TestBrowserSearch_ResultsPage(t *testing.T) {
	b := &BrowserSearch{
		SearchURL: "https://search.test/?q=",
		MaxPages:  2,
		Fetch: func(ctx context.Context, pageURL string) (string, error) {
			if strings.HasPrefix(pageURL, "https://search.test/") {
				return `<a class="result__a" href="https://one.test">1</a><a class="result__a" href="https://two.test">2</a><a class="result__a" href="https://three.test">3</a>`, nil
			}
			return `<p>page ` + pageURL + `</p>`, nil
		},
	}

	res, err := b.Query(context.Background(), "pepsico redmond", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://one.test", "https://two.test"}, res.Sources)
}

func TestBrowserSearch_AllPagesFail(t *testing.T) {
	b := &BrowserSearch{Fetch: func(ctx context.Context, pageURL string) (string, error) {
		return "", errors.New("net down")
	}}
	_, err := b.Query(context.Background(), "q", []string{"https://a.test"})
	require.Error(t, err)
}
