package patientgrid

import "strings"

// Patient detail column names. Their order is the order of the patient
// details group.
const (
	PatientDetailsNameColumn        = "patientDetails__name"
	PatientDetailsGenderColumn      = "patientDetails__gender"
	PatientDetailsAgeCategoryColumn = "patientDetails__ageCategory"
	PatientDetailsCountryColumn     = "patientDetails__country"
	PatientDetailsStructureColumn   = "patientDetails__structure"
)

// PatientDetailsGroupID identifies the patient details column group.
const PatientDetailsGroupID = "patientDetails"

const (
	formColumnPrefix     = "form__"
	questionColumnPrefix = "formQuestion__"
	formDateSuffix       = "__formDate"
	formAgeSuffix        = "__formAge"
	nameSeparator        = "__"
)

// PatientDetailsColumns returns the patient detail column names in display
// order.
func PatientDetailsColumns() []string {
	return []string{
		PatientDetailsNameColumn,
		PatientDetailsGenderColumn,
		PatientDetailsAgeCategoryColumn,
		PatientDetailsCountryColumn,
		PatientDetailsStructureColumn,
	}
}

// QuestionColumnName names the column of a form question.
func QuestionColumnName(formID, questionID string) string {
	return questionColumnPrefix + formID + nameSeparator + questionID
}

// FormDateColumnName names the encounter date column of a form.
func FormDateColumnName(formID string) string {
	return formColumnPrefix + formID + formDateSuffix
}

// FormAgeColumnName names the age-at-encounter column of a form.
func FormAgeColumnName(formID string) string {
	return formColumnPrefix + formID + formAgeSuffix
}

// IsFormDateColumnName reports whether name has the form date shape.
func IsFormDateColumnName(name string) bool {
	return strings.HasPrefix(name, formColumnPrefix) &&
		strings.HasSuffix(name, formDateSuffix) &&
		len(name) > len(formColumnPrefix)+len(formDateSuffix)
}

// FormIDFromColumnName extracts the form uuid from a form date, form age or
// form question column name.
func FormIDFromColumnName(name string) (string, bool) {
	var rest string
	switch {
	case strings.HasPrefix(name, questionColumnPrefix):
		rest = strings.TrimPrefix(name, questionColumnPrefix)
	case strings.HasPrefix(name, formColumnPrefix):
		rest = strings.TrimPrefix(name, formColumnPrefix)
	default:
		return "", false
	}
	id, _, ok := strings.Cut(rest, nameSeparator)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
