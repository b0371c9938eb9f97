// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pubmed

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Article is a publication record. PubMed results carry PMID; PMC results
// carry PMCID.
type Article struct {
	PMID     string   `json:"pmid"`
	PMCID    string   `json:"pmc_id,omitempty"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Journal  string   `json:"journal"`
	Year     string   `json:"year"`
	DOI      string   `json:"doi"`
	Abstract string   `json:"abstract,omitempty"`
}

// innerText collects all character data below an element, ignoring markup
// such as <i> or <sup>.
type innerText string

func (t *innerText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(v)
		}
	}
	*t = innerText(b.String())
	return nil
}

// abstractText is one AbstractText section with its optional Label.
type abstractText struct {
	Label string
	Text  string
}

func (a *abstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	var t innerText
	if err := t.UnmarshalXML(d, start); err != nil {
		return err
	}
	a.Text = string(t)
	return nil
}

type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article *struct {
			Title   innerText `xml:"ArticleTitle"`
			Authors []struct {
				LastName string `xml:"LastName"`
				Initials string `xml:"Initials"`
			} `xml:"AuthorList>Author"`
			Journal struct {
				Title   string `xml:"Title"`
				PubDate struct {
					Year        string `xml:"Year"`
					MedlineDate string `xml:"MedlineDate"`
				} `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
			Abstract []abstractText `xml:"Abstract>AbstractText"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	IDs []struct {
		Type  string `xml:"IdType,attr"`
		Value string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

// ParseArticles decodes an efetch PubmedArticleSet document. Articles
// without a citation are dropped.
func ParseArticles(data []byte) ([]Article, error) {
	var set articleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parse PubMed XML: %w", err)
	}
	out := make([]Article, 0, len(set.Articles))
	for _, pa := range set.Articles {
		if a, ok := pa.article(); ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (pa pubmedArticle) article() (Article, bool) {
	art := pa.Citation.Article
	if art == nil {
		return Article{}, false
	}
	a := Article{
		PMID:    strings.TrimSpace(pa.Citation.PMID),
		Title:   string(art.Title),
		Journal: art.Journal.Title,
		Authors: []string{},
	}
	for _, au := range art.Authors {
		if au.LastName == "" {
			continue
		}
		name := au.LastName
		if au.Initials != "" {
			name += " " + au.Initials
		}
		a.Authors = append(a.Authors, name)
	}

	pd := art.Journal.PubDate
	switch {
	case pd.Year != "":
		a.Year = pd.Year
	case len(pd.MedlineDate) >= 4:
		a.Year = pd.MedlineDate[:4]
	default:
		a.Year = pd.MedlineDate
	}

	parts := make([]string, 0, len(art.Abstract))
	for _, at := range art.Abstract {
		if at.Label != "" {
			parts = append(parts, at.Label+": "+at.Text)
		} else {
			parts = append(parts, at.Text)
		}
	}
	a.Abstract = strings.Join(parts, "\n")

	for _, id := range pa.IDs {
		if id.Type == "doi" {
			a.DOI = strings.TrimSpace(id.Value)
			break
		}
	}
	return a, true
}

// FormatText renders an article for terminal output.
func FormatText(a Article) string {
	var b strings.Builder
	if a.PMID != "" {
		fmt.Fprintf(&b, "PMID: %s\n", a.PMID)
	} else {
		fmt.Fprintf(&b, "PMC: %s\n", a.PMCID)
	}
	fmt.Fprintf(&b, "  Title: %s\n", orNA(a.Title))
	if n := len(a.Authors); n > 0 {
		s := strings.Join(a.Authors, ", ")
		if n > 5 {
			s = strings.Join(a.Authors[:5], ", ") + fmt.Sprintf(", ... (+%d more)", n-5)
		}
		fmt.Fprintf(&b, "  Authors: %s\n", s)
	}
	fmt.Fprintf(&b, "  Journal: %s (%s)", orNA(a.Journal), orNA(a.Year))
	if a.DOI != "" {
		fmt.Fprintf(&b, "\n  DOI: https://doi.org/%s", a.DOI)
	}
	if a.Abstract != "" {
		abs := a.Abstract
		if r := []rune(abs); len(r) > 300 {
			abs = string(r[:300]) + "..."
		}
		fmt.Fprintf(&b, "\n  Abstract: %s", abs)
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
