// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package datamodel

import (
	"fmt"
	"sort"
	"strings"
)

// Component categories in display order.
var Categories = []string{
	"Clinical", "Biospecimen", "Sequencing", "Imaging",
	"Spatial Transcriptomics", "Proteomics", "Other",
}

var categoryMarkers = []struct {
	category string
	markers  []string
}{
	{"Clinical", []string{"demographics", "diagnosis", "exposure", "follow", "therapy",
		"molecular test", "family history", "patient", "clinical"}},
	{"Biospecimen", []string{"biospecimen"}},
	{"Spatial Transcriptomics", []string{"visium", "merfish", "slide-seq", "geomx",
		"nanostring", "xenium", "spatial"}},
	{"Imaging", []string{"imaging", "cycif", "codex", "mibi", "ihc", "h&e", "hematoxylin",
		"electron microscopy", "imc", "saber"}},
	{"Sequencing", []string{"scrna", "scatac", "snrna", "cite-seq", "bulkrna", "bulkwes",
		"bulkwgs", "hi-c", "methylation", "scdna", "rna-seq", "atac-seq", "wes", "wgs"}},
	{"Proteomics", []string{"mass spec", "rppa", "label free", "isobaric"}},
}

// Category classifies a component by name, falling back to its parent.
func Category(name, parent string) string {
	n := strings.ToLower(name)
	for _, c := range categoryMarkers {
		for _, mk := range c.markers {
			if strings.Contains(n, mk) {
				return c.category
			}
		}
	}
	p := strings.ToLower(parent)
	if strings.Contains(p, "sequencing") || strings.Contains(p, "assay") {
		return "Sequencing"
	}
	return "Other"
}

const noValues = "  (none; free text or computed)"

// FormatComponents renders components grouped by category.
func FormatComponents(comps []Component) string {
	byCat := map[string][]Component{}
	for _, c := range comps {
		cat := Category(c.Name, c.Parent)
		byCat[cat] = append(byCat[cat], c)
	}
	var b strings.Builder
	for _, cat := range Categories {
		cs := byCat[cat]
		if len(cs) == 0 {
			continue
		}
		sort.Slice(cs, func(i, j int) bool { return cs[i].Name < cs[j].Name })
		fmt.Fprintf(&b, "\n=== %s (%d components) ===\n", cat, len(cs))
		fmt.Fprintf(&b, "%-45s %5s  %s\n", "Component", "Attrs", "Parent")
		fmt.Fprintf(&b, "%s %s  %s\n", dashes(45), dashes(5), dashes(30))
		for _, c := range cs {
			fmt.Fprintf(&b, "%-45s %5d  %s\n", clip(c.Name, 45), c.AttributeCount, c.Parent)
		}
	}
	fmt.Fprintf(&b, "\nTotal: %d components", len(comps))
	return b.String()
}

// FormatAttributes renders a component's attribute table.
func FormatAttributes(component string, attrs []Attribute) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Component: %s\nAttributes: %d\n\n", component, len(attrs))
	fmt.Fprintf(&b, "%-40s %3s  %6s  %s\n", "Attribute", "Req", "Values", "Valid Values Preview")
	fmt.Fprintf(&b, "%s %s  %s  %s", dashes(40), dashes(3), dashes(6), dashes(40))
	for _, a := range attrs {
		req := ""
		if a.Required {
			req = "Yes"
		}
		fmt.Fprintf(&b, "\n%-40s %3s  %6d  %s", a.Name, req, a.ValidValuesCount, clip(a.ValidValuesPreview, 40))
	}
	return b.String()
}

// FormatDescribe renders one attribute in full.
func FormatDescribe(d *Detail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attribute: %s\n", d.Attribute)
	fmt.Fprintf(&b, "Description: %s\n", or(d.Description, "N/A"))
	fmt.Fprintf(&b, "Required: %s\n", boolText(d.Required))
	fmt.Fprintf(&b, "Parent: %s\n", or(d.Parent, "N/A"))
	fmt.Fprintf(&b, "Source: %s\n", or(d.Source, "N/A"))
	fmt.Fprintf(&b, "Validation Rules: %s\n", or(d.ValidationRules, "None"))
	fmt.Fprintf(&b, "DependsOn: %s\n", or(strings.Join(d.DependsOn, ", "), "None"))
	if d.DependsOnComponent != "" {
		fmt.Fprintf(&b, "DependsOn Component: %s\n", d.DependsOnComponent)
	}
	fmt.Fprintf(&b, "\nValid Values (%d):", len(d.ValidValues))
	if len(d.ValidValues) == 0 {
		b.WriteString("\n" + noValues)
	}
	for _, v := range d.ValidValues {
		b.WriteString("\n  - " + v)
	}
	return b.String()
}

// FormatValidValues renders the allowed values of an attribute.
func FormatValidValues(attr string, values []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Valid values for '%s' (%d):", attr, len(values))
	for _, v := range values {
		b.WriteString("\n  " + v)
	}
	if len(values) == 0 {
		b.WriteString("\n" + noValues)
	}
	return b.String()
}

// FormatSearch renders search hits.
func FormatSearch(matches []Match) string {
	if len(matches) == 0 {
		return "No matches found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %-25s %s\n", "Attribute", "Parent", "Match In")
	fmt.Fprintf(&b, "%s %s %s\n", dashes(40), dashes(25), dashes(15))
	for _, m := range matches {
		fmt.Fprintf(&b, "%-40s %-25s %s\n", m.Name, m.Parent, m.MatchIn)
	}
	fmt.Fprintf(&b, "\n%d matches", len(matches))
	return b.String()
}

// FormatRequired renders the required attributes of a component. total is
// the component's attribute count.
func FormatRequired(component string, required []Attribute, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Component: %s\n", component)
	fmt.Fprintf(&b, "Required: %d, Optional: %d, Total: %d\n", len(required), total-len(required), total)
	b.WriteString("\nRequired attributes:")
	for _, a := range required {
		b.WriteString("\n  " + a.Name)
		if a.ValidationRules != "" {
			fmt.Fprintf(&b, "  [%s]", a.ValidationRules)
		}
	}
	return b.String()
}

// FormatDeps renders a dependency chain as an indented tree rooted at the
// first element.
func FormatDeps(chain []Dep) string {
	if len(chain) == 0 {
		return "No dependency chain found."
	}
	byName := make(map[string]Dep, len(chain))
	for _, d := range chain {
		byName[strings.ToLower(d.Name)] = d
	}
	var lines []string
	rendered := map[string]bool{}
	line := func(depth int, name string) {
		prefix := strings.Repeat("  ", depth)
		if depth > 0 {
			prefix += "→ "
		}
		lines = append(lines, prefix+name)
	}

	var walk func(d Dep, depth int)
	walk = func(d Dep, depth int) {
		if rendered[d.Name] {
			return
		}
		rendered[d.Name] = true
		line(depth, d.Name)
		for _, name := range d.DependsOnComponents {
			if dep, ok := byName[strings.ToLower(name)]; ok && !rendered[dep.Name] {
				walk(dep, depth+1)
			} else if !ok && !rendered[name] {
				line(depth+1, name)
				rendered[name] = true
			}
		}
	}
	walk(chain[0], 0)
	return strings.Join(lines, "\n")
}

func dashes(n int) string { return strings.Repeat("-", n) }

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func boolText(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
