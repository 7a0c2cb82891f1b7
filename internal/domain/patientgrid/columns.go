package patientgrid

import "fmt"

// ColumnNode is a node of the column tree. Leaves carry the accessor (the
// column name); groups carry child nodes.
type ColumnNode struct {
	ID       string       `json:"id"`
	Header   string       `json:"header"`
	Accessor string       `json:"accessor,omitempty"`
	Columns  []ColumnNode `json:"columns,omitempty"`
}

// IsLeaf reports whether the node is a column rather than a group.
func (n ColumnNode) IsLeaf() bool {
	return n.Accessor != ""
}

// Accessors returns the column names of every leaf below n, in order.
func (n ColumnNode) Accessors() []string {
	if n.IsLeaf() {
		return []string{n.Accessor}
	}
	var out []string
	for _, c := range n.Columns {
		out = append(out, c.Accessors()...)
	}
	return out
}

// seedLeafCount is the number of leaves every form group starts with (date
// and age).
const seedLeafCount = 2

// BuildColumnTree builds the column groups of a report: patient details,
// then one group per form in the order given. Only columns present in the
// report become leaves, and empty groups are pruned. Forms whose schema is
// missing are left out.
func BuildColumnTree(forms []Form, schemas map[string]*FormSchema, labels map[string]string, present map[string]struct{}) []ColumnNode {
	isPresent := func(name string) bool {
		_, ok := present[name]
		return ok
	}

	var tree []ColumnNode
	if details, ok := patientDetailsGroup(labels, isPresent); ok {
		tree = append(tree, details)
	}
	for i := range forms {
		schema := SchemaFor(&forms[i], schemas)
		if schema == nil {
			continue
		}
		group := FormColumnGroup(&forms[i], schema, labels, isPresent)
		if len(group.Columns) > seedLeafCount {
			tree = append(tree, group)
		}
	}
	return tree
}

// FormColumnGroup builds the group of one form: the date and age leaves
// followed by a group per section holding the section's mappable questions
// accepted by include. Sections without leaves are dropped.
func FormColumnGroup(form *Form, schema *FormSchema, labels map[string]string, include func(string) bool) ColumnNode {
	group := ColumnNode{
		ID:     form.UUID,
		Header: form.DisplayName(),
		Columns: []ColumnNode{
			leaf(FormDateColumnName(form.UUID), labels, DefaultColumnLabels[FormDateLabelKey]),
			leaf(FormAgeColumnName(form.UUID), labels, DefaultColumnLabels[FormAgeLabelKey]),
		},
	}
	if schema == nil {
		return group
	}
	for pi := range schema.Pages {
		page := &schema.Pages[pi]
		for si := range page.Sections {
			section := &page.Sections[si]
			sectionGroup := ColumnNode{
				ID:     fmt.Sprintf("%s__section__%d_%d", form.UUID, pi, si),
				Header: section.Label,
			}
			for _, q := range SectionQuestions(form, page, section) {
				name := q.ColumnName()
				if !include(name) {
					continue
				}
				sectionGroup.Columns = append(sectionGroup.Columns, leaf(name, labels, questionText(q.Question)))
			}
			if len(sectionGroup.Columns) > 0 {
				group.Columns = append(group.Columns, sectionGroup)
			}
		}
	}
	return group
}

func patientDetailsGroup(labels map[string]string, isPresent func(string) bool) (ColumnNode, bool) {
	group := ColumnNode{
		ID:     PatientDetailsGroupID,
		Header: labelOr(labels, PatientDetailsGroupID, "Patient details"),
	}
	for _, name := range PatientDetailsColumns() {
		if isPresent(name) {
			group.Columns = append(group.Columns, leaf(name, labels, DefaultColumnLabels[name]))
		}
	}
	return group, len(group.Columns) > 0
}

func leaf(name string, labels map[string]string, fallback string) ColumnNode {
	return ColumnNode{ID: name, Header: labelOr(labels, name, fallback), Accessor: name}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if l, ok := labels[key]; ok && l != "" {
		return l
	}
	if fallback != "" {
		return fallback
	}
	return key
}
