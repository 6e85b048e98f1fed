package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultArxivBaseURL = "http://export.arxiv.org/api/query"

// ArxivSearch queries the arxiv Atom API for papers about a topic and
// formats the top hits as a prompt context block.
type ArxivSearch struct {
	baseURL    string
	maxResults int
	client     *http.Client
}

func NewArxivSearch(baseURL string, maxResults int) *ArxivSearch {
	if baseURL == "" {
		baseURL = defaultArxivBaseURL
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	return &ArxivSearch{
		baseURL:    baseURL,
		maxResults: maxResults,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *ArxivSearch) Name() string { return "arxiv_search" }

// Paper is one arxiv search hit.
type Paper struct {
	Title     string
	Authors   []string
	Published string
	Summary   string
	PDFURL    string
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
	Links []struct {
		Href  string `xml:"href,attr"`
		Title string `xml:"title,attr"`
	} `xml:"link"`
}

// SearchPapers returns structured results for the topic.
func (a *ArxivSearch) SearchPapers(ctx context.Context, topic string) ([]Paper, error) {
	q := url.Values{}
	q.Set("search_query", "all:"+topic)
	q.Set("max_results", fmt.Sprint(a.maxResults))
	q.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv http %d", resp.StatusCode)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("arxiv feed decode: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		p := Paper{
			Title:     collapse(e.Title),
			Summary:   collapse(e.Summary),
			Published: e.Published,
		}
		if len(p.Published) >= 10 {
			p.Published = p.Published[:10]
		}
		for _, au := range e.Authors {
			p.Authors = append(p.Authors, au.Name)
		}
		for _, l := range e.Links {
			if l.Title == "pdf" {
				p.PDFURL = l.Href
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// Run implements the agent tool contract.
func (a *ArxivSearch) Run(ctx context.Context, topic string) (string, error) {
	papers, err := a.SearchPapers(ctx, topic)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d papers for topic %q:\n\n", len(papers), topic)
	for i, p := range papers {
		fmt.Fprintf(&sb, "Paper %d: %s\n", i+1, p.Title)
		fmt.Fprintf(&sb, "Authors: %s\n", strings.Join(p.Authors, ", "))
		fmt.Fprintf(&sb, "Published: %s\n", p.Published)
		if p.PDFURL != "" {
			fmt.Fprintf(&sb, "URL: %s\n", p.PDFURL)
		}
		fmt.Fprintf(&sb, "Summary: %s\n", p.Summary)
		sb.WriteString(strings.Repeat("-", 50) + "\n")
	}
	return sb.String(), nil
}

// collapse squashes the newline-indented text arxiv puts in titles and
// abstracts into single-space prose.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
