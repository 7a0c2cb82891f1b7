package patientgrid

// ObsQuestionType is the question type that records an observation.
const ObsQuestionType = "obs"

// MaxQuestionDepth bounds the nesting of composite questions that is
// walked. Deeper questions are ignored.
const MaxQuestionDepth = 32

// MappableQuestion is a schema question that can be shown as a grid column,
// together with the page and section that own it.
type MappableQuestion struct {
	Form     *Form
	Page     *SchemaPage
	Section  *SchemaSection
	Question *Question
}

// ColumnName is the report column name of the question.
func (q MappableQuestion) ColumnName() string {
	return QuestionColumnName(q.Form.UUID, q.Question.ID)
}

// IsMappable reports whether a question becomes a grid column.
func IsMappable(q *Question) bool {
	return q.Type == ObsQuestionType && q.QuestionOptions.Concept != ""
}

// MappableQuestions returns the questions of schema that map to grid
// columns, in document order: pages, then sections, then questions, with
// nested questions following their parent. A nil schema yields nil.
func MappableQuestions(form *Form, schema *FormSchema) []MappableQuestion {
	if form == nil || schema == nil {
		return nil
	}
	var out []MappableQuestion
	for pi := range schema.Pages {
		page := &schema.Pages[pi]
		for si := range page.Sections {
			section := &page.Sections[si]
			walkQuestions(section.Questions, 0, func(q *Question) {
				if IsMappable(q) {
					out = append(out, MappableQuestion{Form: form, Page: page, Section: section, Question: q})
				}
			})
		}
	}
	return out
}

// SectionQuestions returns the mappable questions of a single section.
func SectionQuestions(form *Form, page *SchemaPage, section *SchemaSection) []MappableQuestion {
	var out []MappableQuestion
	walkQuestions(section.Questions, 0, func(q *Question) {
		if IsMappable(q) {
			out = append(out, MappableQuestion{Form: form, Page: page, Section: section, Question: q})
		}
	})
	return out
}

// UnlabeledConceptIDs returns every concept referenced by the schema: by a
// question itself, by its question options, or by one of its answers.
func UnlabeledConceptIDs(schema *FormSchema) map[string]struct{} {
	ids := make(map[string]struct{})
	if schema == nil {
		return ids
	}
	add := func(id string) {
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	for pi := range schema.Pages {
		for si := range schema.Pages[pi].Sections {
			walkQuestions(schema.Pages[pi].Sections[si].Questions, 0, func(q *Question) {
				add(q.Concept)
				add(q.QuestionOptions.Concept)
				for _, a := range q.QuestionOptions.Answers {
					add(a.Concept)
				}
			})
		}
	}
	return ids
}

func walkQuestions(questions []Question, depth int, visit func(*Question)) {
	if depth >= MaxQuestionDepth {
		return
	}
	for i := range questions {
		q := &questions[i]
		visit(q)
		if len(q.Questions) > 0 {
			walkQuestions(q.Questions, depth+1, visit)
		}
	}
}
