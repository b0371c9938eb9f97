// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package datamodel

import (
	"context"
	"strings"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
)

// Component is a manifest template and the attributes it collects.
type Component struct {
	Name                string   `json:"name"`
	Parent              string   `json:"parent"`
	AttributeCount      int      `json:"attribute_count"`
	Attributes          []string `json:"attributes"`
	DependsOnComponents []string `json:"depends_on_components"`
}

// Attribute summarizes one attribute of a component.
type Attribute struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	Required           bool   `json:"required"`
	ValidValuesCount   int    `json:"valid_values_count"`
	ValidValuesPreview string `json:"valid_values_preview"`
	ValidationRules    string `json:"validation_rules"`
	Parent             string `json:"parent"`
}

// Detail is the full record for one attribute.
type Detail struct {
	Attribute          string   `json:"attribute"`
	Description        string   `json:"description"`
	Required           bool     `json:"required"`
	Parent             string   `json:"parent"`
	Source             string   `json:"source"`
	ValidationRules    string   `json:"validation_rules"`
	DependsOn          []string `json:"depends_on"`
	DependsOnComponent string   `json:"depends_on_component"`
	ValidValues        []string `json:"valid_values"`
}

// Match is one keyword search hit.
type Match struct {
	Name        string `json:"name"`
	Parent      string `json:"parent"`
	Description string `json:"description"`
	MatchIn     string `json:"match_in"`
}

// Dep is one node of a dependency chain.
type Dep struct {
	Name                string   `json:"name"`
	DependsOnComponents []string `json:"depends_on_components"`
}

// Components lists every manifest component: rows declaring a
// DependsOn Component, plus referenced components that carry attributes.
func (m *Model) Components(ctx context.Context) ([]Component, error) {
	rs, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return components(rs), nil
}

func components(rs []row) []Component {
	var out []Component
	seen := map[string]bool{}
	referenced := map[string]bool{}

	for _, r := range rs {
		deps := r.list(colDepComp)
		if len(deps) == 0 {
			continue
		}
		attrs := r.list(colDependsOn)
		out = append(out, Component{
			Name:                r.name(),
			Parent:              r.get(colParent),
			AttributeCount:      len(attrs),
			Attributes:          attrs,
			DependsOnComponents: deps,
		})
		seen[r.name()] = true
		for _, d := range deps {
			referenced[d] = true
		}
	}
	for _, r := range rs {
		name := r.name()
		if !referenced[name] || seen[name] {
			continue
		}
		attrs := r.list(colDependsOn)
		if len(attrs) == 0 {
			continue
		}
		out = append(out, Component{
			Name:                name,
			Parent:              r.get(colParent),
			AttributeCount:      len(attrs),
			Attributes:          attrs,
			DependsOnComponents: []string{},
		})
		seen[name] = true
	}
	return out
}

// Attributes returns the resolved component name and its attributes in
// model order. component matches case-insensitively, exactly first and then
// as a unique substring.
func (m *Model) Attributes(ctx context.Context, component string) (string, []Attribute, error) {
	rs, err := m.load(ctx)
	if err != nil {
		return "", nil, err
	}
	comp, err := findComponentRow(rs, component)
	if err != nil {
		return "", nil, err
	}

	byName := make(map[string]row, len(rs))
	for _, r := range rs {
		byName[r.name()] = r
	}
	names := comp.list(colDependsOn)
	attrs := make([]Attribute, 0, len(names))
	for _, name := range names {
		r, ok := byName[name]
		if !ok {
			attrs = append(attrs, Attribute{Name: name})
			continue
		}
		vv := r.list(colValid)
		preview := strings.Join(head(vv, 5), ", ")
		if len(vv) > 5 {
			preview += "..."
		}
		attrs = append(attrs, Attribute{
			Name:               name,
			Description:        r.get(colDesc),
			Required:           isTrue(r.get(colRequired)),
			ValidValuesCount:   len(vv),
			ValidValuesPreview: preview,
			ValidationRules:    r.get(colValidation),
			Parent:             r.get(colParent),
		})
	}
	return comp.name(), attrs, nil
}

func findComponentRow(rs []row, component string) (row, error) {
	known := map[string]bool{}
	for _, c := range components(rs) {
		known[strings.ToLower(c.Name)] = true
	}
	isComponent := func(r row) bool {
		return r.get(colDependsOn) != "" && known[strings.ToLower(r.name())]
	}

	want := strings.ToLower(component)
	for _, r := range rs {
		if strings.ToLower(r.name()) == want && isComponent(r) {
			return r, nil
		}
	}
	var matches []row
	for _, r := range rs {
		if isComponent(r) && strings.Contains(strings.ToLower(r.name()), want) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, herrors.Newf(herrors.NotFound, "Component '%s' not found. Use components to list all.", component)
	}
	return nil, herrors.Newf(herrors.InvalidInput, "Ambiguous component name '%s'. Did you mean: %s", component, joinNames(matches, 0))
}

// findAttribute matches exactly (case-insensitive), then by unique substring.
func findAttribute(rs []row, attr string) (row, error) {
	want := strings.ToLower(attr)
	for _, r := range rs {
		if strings.ToLower(r.name()) == want {
			return r, nil
		}
	}
	var matches []row
	for _, r := range rs {
		if strings.Contains(strings.ToLower(r.name()), want) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return nil, herrors.Newf(herrors.NotFound, "Attribute '%s' not found. Use search to find by keyword.", attr)
	}
	return nil, herrors.Newf(herrors.InvalidInput, "Ambiguous attribute name '%s'. Did you mean: %s", attr, joinNames(matches, 10))
}

// Describe returns the full record for one attribute.
func (m *Model) Describe(ctx context.Context, attr string) (*Detail, error) {
	rs, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	r, err := findAttribute(rs, attr)
	if err != nil {
		return nil, err
	}
	return &Detail{
		Attribute:          r.name(),
		Description:        r.get(colDesc),
		Required:           isTrue(r.get(colRequired)),
		Parent:             r.get(colParent),
		Source:             r.get(colSource),
		ValidationRules:    r.get(colValidation),
		DependsOn:          r.list(colDependsOn),
		DependsOnComponent: r.get(colDepComp),
		ValidValues:        r.list(colValid),
	}, nil
}

// ValidValues returns the resolved attribute name and its allowed values.
// An empty list means free text or a computed value.
func (m *Model) ValidValues(ctx context.Context, attr string) (string, []string, error) {
	rs, err := m.load(ctx)
	if err != nil {
		return "", nil, err
	}
	r, err := findAttribute(rs, attr)
	if err != nil {
		return "", nil, err
	}
	return r.name(), r.list(colValid), nil
}

// Search finds attributes whose name, description or valid values contain
// keyword, case-insensitively.
func (m *Model) Search(ctx context.Context, keyword string) ([]Match, error) {
	rs, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	kw := strings.ToLower(keyword)
	out := []Match{}
	for _, r := range rs {
		desc := r.get(colDesc)
		var in []string
		if strings.Contains(strings.ToLower(r.name()), kw) {
			in = append(in, "name")
		}
		if strings.Contains(strings.ToLower(desc), kw) {
			in = append(in, "description")
		}
		if strings.Contains(strings.ToLower(r.get(colValid)), kw) {
			in = append(in, "valid values")
		}
		if len(in) > 0 {
			out = append(out, Match{
				Name:        r.name(),
				Parent:      r.get(colParent),
				Description: desc,
				MatchIn:     strings.Join(in, ", "),
			})
		}
	}
	return out, nil
}

// Required returns the resolved component name and its required attributes.
func (m *Model) Required(ctx context.Context, component string) (string, []Attribute, error) {
	name, attrs, err := m.Attributes(ctx, component)
	if err != nil {
		return "", nil, err
	}
	req := []Attribute{}
	for _, a := range attrs {
		if a.Required {
			req = append(req, a)
		}
	}
	return name, req, nil
}

// Deps walks the component dependency graph breadth-first from component.
// The first element is the starting component.
func (m *Model) Deps(ctx context.Context, component string) ([]Dep, error) {
	rs, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	lookup := map[string]Dep{}
	var keys []string
	for _, c := range components(rs) {
		k := strings.ToLower(c.Name)
		if _, dup := lookup[k]; !dup {
			keys = append(keys, k)
		}
		lookup[k] = Dep{Name: c.Name, DependsOnComponents: c.DependsOnComponents}
	}

	start := strings.ToLower(component)
	if _, ok := lookup[start]; !ok {
		var matches []string
		for _, k := range keys {
			if strings.Contains(k, start) {
				matches = append(matches, k)
			}
		}
		switch len(matches) {
		case 1:
			start = matches[0]
		case 0:
			return nil, herrors.Newf(herrors.NotFound, "Component '%s' not found.", component)
		default:
			names := make([]string, len(matches))
			for i, k := range matches {
				names[i] = lookup[k].Name
			}
			return nil, herrors.Newf(herrors.InvalidInput, "Ambiguous component '%s'. Did you mean: %s", component, strings.Join(names, ", "))
		}
	}

	var chain []Dep
	visited := map[string]bool{}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		d, ok := lookup[cur]
		if !ok {
			continue
		}
		chain = append(chain, d)
		for _, dep := range d.DependsOnComponents {
			if k := strings.ToLower(dep); !visited[k] {
				queue = append(queue, k)
			}
		}
	}
	return chain, nil
}

func isTrue(s string) bool { return strings.EqualFold(s, "TRUE") }

func head(xs []string, n int) []string {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

// joinNames lists row names, at most limit of them when limit > 0.
func joinNames(rs []row, limit int) string {
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.name()
	}
	return strings.Join(names, ", ")
}
