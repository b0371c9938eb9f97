// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pubmed

import "strings"

// Phase1Grants are the HTAN Phase 1 award numbers (CA233xxx series).
var Phase1Grants = []string{
	"CA233195", "CA233238", "CA233243", "CA233254", "CA233262",
	"CA233280", "CA233284", "CA233285", "CA233291", "CA233303", "CA233311",
}

// Phase2Grants are the HTAN Phase 2 award numbers (CA294xxx series).
var Phase2Grants = []string{
	"CA294459", "CA294507", "CA294514", "CA294518", "CA294527",
	"CA294532", "CA294536", "CA294548", "CA294551", "CA294552",
}

// DCCGrants is the data coordinating center contract.
var DCCGrants = []string{"HHSN261201500003I"}

// Authors are HTAN-affiliated last authors.
var Authors = []string{
	"Achilefu S", "Ashenberg O", "Aster J", "Cerami E", "Coffey RJ",
	"Curtis C", "Demir E", "Ding L", "Dubinett S", "Esplin ED",
	"Fields R", "Ford JM", "Ghosh S", "Gillanders W", "Goecks J",
	"Gray JW", "Greenleaf W", "Guinney J", "Hanlon SE", "Hughes SK",
	"Hunger SE", "Hupalowska A", "Hwang ES", "Iacobuzio-Donahue CA",
	"Jane-Valbuena J", "Johnson BE", "Lau KS", "Lively T", "Maley C",
	"Mazzilli SA", "Mills GB", "Nawy T", "Oberdoerffer P", "Pe'er D",
	"Regev A", "Rood JE", "Rozenblatt-Rosen O", "Santagata S",
	"Schapiro D", "Shalek AK", "Shrubsole MJ", "Snyder MP",
	"Sorger PK", "Spira AE", "Srivastava S", "Suva M", "Tan K",
	"Thomas GV", "West RB", "Williams EH", "Wold B", "Bastian B",
	"Dos Santos DC", "Fertig E", "Chen F", "Shain AH", "Ghobrial I",
	"Yeh I", "Amatruda J", "Spraggins J", "Brody J", "Wood L",
	"Wang L", "Cai L", "Shrubsole M", "Thomson M", "Birrer M",
	"Xu M", "Li M", "Mansfield P", "Everson R", "Fan R",
	"Sears R", "Pachynski R", "Fields R", "Mok S",
	"Ferri-Borgogno S", "Asgharzadeh S", "Halene S", "Hwang TH", "Ma Z",
}

// AllGrants returns every grant in query order.
func AllGrants() []string {
	out := make([]string, 0, len(Phase1Grants)+len(Phase2Grants)+len(DCCGrants))
	out = append(out, Phase1Grants...)
	out = append(out, Phase2Grants...)
	return append(out, DCCGrants...)
}

// GrantQuery ORs every grant as a [gr] term.
func GrantQuery() string {
	return joinTerms(AllGrants(), "gr")
}

// AuthorQuery restricts to author, or to every HTAN author when empty.
func AuthorQuery(author string) string {
	if author != "" {
		return author + "[LASTAU]"
	}
	return joinTerms(Authors, "LASTAU")
}

// BuildSearchQuery combines the grant and author clauses with the optional
// keyword and year filters.
func BuildSearchQuery(keyword, author, year string) string {
	q := "(" + GrantQuery() + ") AND (" + AuthorQuery(author) + ")"
	if keyword != "" {
		q = "(" + q + ") AND (" + keyword + ")"
	}
	if year != "" {
		q = "(" + q + ") AND (" + year + "[pdat])"
	}
	return q
}

// FullTextQuery restricts a PMC query to HTAN grants.
func FullTextQuery(query string) string {
	return "(" + GrantQuery() + ") AND (" + query + ")"
}

func joinTerms(terms []string, field string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t + "[" + field + "]"
	}
	return strings.Join(parts, " OR ")
}
