package patientgrid

import "sort"

// ConceptBatchSize is the number of concept references sent per bulk
// lookup request.
const ConceptBatchSize = 100

// Label keys shared by every form's synthetic columns.
const (
	FormDateLabelKey = "formDate"
	FormAgeLabelKey  = "formAge"
)

// DefaultColumnLabels are the built-in labels of the hardcoded columns.
var DefaultColumnLabels = map[string]string{
	PatientDetailsGroupID:           "Patient details",
	PatientDetailsNameColumn:        "Name",
	PatientDetailsGenderColumn:      "Gender",
	PatientDetailsAgeCategoryColumn: "Age category",
	PatientDetailsCountryColumn:     "Country",
	PatientDetailsStructureColumn:   "Structure",
	FormDateLabelKey:                "Date",
	FormAgeLabelKey:                 "Age",
}

// SchemaFor returns the schema of form from a reference-keyed schema map.
func SchemaFor(form *Form, schemas map[string]*FormSchema) *FormSchema {
	if form == nil || schemas == nil {
		return nil
	}
	ref := form.SchemaReference()
	if ref == "" {
		return nil
	}
	return schemas[ref]
}

// HardcodedLabels returns labels of the patient detail columns and of each
// form's date and age columns. overrides replaces built-in entries by key.
func HardcodedLabels(forms []Form, overrides map[string]string) map[string]string {
	base := make(map[string]string, len(DefaultColumnLabels))
	for k, v := range DefaultColumnLabels {
		base[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			base[k] = v
		}
	}

	labels := make(map[string]string, len(PatientDetailsColumns())+2*len(forms)+1)
	labels[PatientDetailsGroupID] = base[PatientDetailsGroupID]
	for _, name := range PatientDetailsColumns() {
		labels[name] = base[name]
	}
	for _, f := range forms {
		labels[FormDateColumnName(f.UUID)] = base[FormDateLabelKey]
		labels[FormAgeColumnName(f.UUID)] = base[FormAgeLabelKey]
	}
	return labels
}

// FallbackLabels labels each question column with the question's own label,
// or its id when it has none.
func FallbackLabels(forms []Form, schemas map[string]*FormSchema) map[string]string {
	labels := make(map[string]string)
	for i := range forms {
		for _, q := range MappableQuestions(&forms[i], SchemaFor(&forms[i], schemas)) {
			labels[q.ColumnName()] = questionText(q.Question)
		}
	}
	return labels
}

// ConceptLabels labels each question column with the display of its concept
// when the concept was resolved.
func ConceptLabels(forms []Form, schemas map[string]*FormSchema, concepts map[string]Concept) map[string]string {
	labels := make(map[string]string)
	for i := range forms {
		for _, q := range MappableQuestions(&forms[i], SchemaFor(&forms[i], schemas)) {
			if c, ok := concepts[q.Question.QuestionOptions.Concept]; ok && c.Display != "" {
				labels[q.ColumnName()] = c.Display
			}
		}
	}
	return labels
}

// MergeLabels merges label layers; later layers win over earlier ones.
func MergeLabels(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			if v != "" {
				out[k] = v
			}
		}
	}
	return out
}

// ResolveLabels builds the column label map from schema fallbacks,
// hardcoded labels and resolved concepts, in increasing priority.
func ResolveLabels(forms []Form, schemas map[string]*FormSchema, hardcoded map[string]string, concepts map[string]Concept) map[string]string {
	return MergeLabels(
		FallbackLabels(forms, schemas),
		hardcoded,
		ConceptLabels(forms, schemas, concepts),
	)
}

// ConceptIDs collects the concept references of every form schema.
func ConceptIDs(forms []Form, schemas map[string]*FormSchema) map[string]struct{} {
	ids := make(map[string]struct{})
	for i := range forms {
		for id := range UnlabeledConceptIDs(SchemaFor(&forms[i], schemas)) {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// BatchConceptIDs splits ids into sorted batches of at most size entries.
func BatchConceptIDs(ids map[string]struct{}, size int) [][]string {
	if size <= 0 {
		size = ConceptBatchSize
	}
	sorted := make([]string, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	var batches [][]string
	for start := 0; start < len(sorted); start += size {
		end := start + size
		if end > len(sorted) {
			end = len(sorted)
		}
		batches = append(batches, sorted[start:end])
	}
	return batches
}

// IndexConcepts keys concepts by uuid and by each of their mappings, so a
// schema may reference them either way.
func IndexConcepts(concepts []Concept) map[string]Concept {
	idx := make(map[string]Concept, len(concepts))
	for _, c := range concepts {
		if c.UUID != "" {
			idx[c.UUID] = c
		}
		for _, m := range c.Mappings {
			idx[m.Reference()] = c
		}
	}
	return idx
}

func questionText(q *Question) string {
	if q.Label != "" {
		return q.Label
	}
	return q.ID
}
