package patientgrid

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// CellKind discriminates the shapes a report cell can take.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellBool
	CellObs
	CellEncounters
	CellUnknown
)

func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellBool:
		return "bool"
	case CellObs:
		return "obs"
	case CellEncounters:
		return "encounters"
	default:
		return "unknown"
	}
}

// Cell is a report cell. The kind is fixed when the report is decoded so
// downstream code switches on Kind instead of re-inspecting the payload.
type Cell struct {
	Kind CellKind
	// Text holds the string value, the number or bool literal, or the raw
	// payload of an unknown cell.
	Text       string
	Obs        *Obs
	Encounters []map[string]Cell
}

// StringCell builds a string cell.
func StringCell(s string) Cell { return Cell{Kind: CellString, Text: s} }

// NumberCell builds a number cell from its literal.
func NumberCell(literal string) Cell { return Cell{Kind: CellNumber, Text: literal} }

// ObsCell builds an obs cell.
func ObsCell(o Obs) Cell { return Cell{Kind: CellObs, Obs: &o} }

// EncountersCell builds a download encounter list cell.
func EncountersCell(encs ...map[string]Cell) Cell {
	return Cell{Kind: CellEncounters, Encounters: encs}
}

// UnmarshalJSON never fails: a payload that matches none of the known
// shapes becomes a CellUnknown holding the raw text.
func (c *Cell) UnmarshalJSON(data []byte) error {
	*c = decodeCell(data)
	return nil
}

func decodeCell(data []byte) Cell {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Cell{Kind: CellEmpty}
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return StringCell(s)
		}
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err == nil {
			return Cell{Kind: CellBool, Text: strconv.FormatBool(b)}
		}
	case '{':
		var o Obs
		if err := json.Unmarshal(data, &o); err == nil {
			return ObsCell(o)
		}
		// Malformed sibling fields do not hide the value.
		var bare struct {
			Value ObsValue `json:"value"`
		}
		if err := json.Unmarshal(data, &bare); err == nil {
			return ObsCell(Obs{Value: bare.Value})
		}
	case '[':
		var encs []map[string]Cell
		if err := json.Unmarshal(data, &encs); err == nil {
			return EncountersCell(encs...)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err == nil {
			return NumberCell(n.String())
		}
	}
	return Cell{Kind: CellUnknown, Text: string(data)}
}

func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellEmpty:
		return []byte("null"), nil
	case CellString:
		return json.Marshal(c.Text)
	case CellNumber, CellBool:
		return []byte(c.Text), nil
	case CellObs:
		return json.Marshal(c.Obs)
	case CellEncounters:
		return json.Marshal(c.Encounters)
	default:
		if json.Valid([]byte(c.Text)) {
			return []byte(c.Text), nil
		}
		return json.Marshal(c.Text)
	}
}

// String reduces the cell to display text. Obs cells render their value,
// numbers render the way a JavaScript client would print them.
func (c Cell) String() string {
	switch c.Kind {
	case CellEmpty, CellEncounters:
		return ""
	case CellString, CellBool, CellUnknown:
		return c.Text
	case CellNumber:
		return formatNumber(c.Text)
	case CellObs:
		if c.Obs == nil {
			return ""
		}
		return c.Obs.Value.String()
	}
	return c.Text
}

func formatNumber(literal string) string {
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return literal
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ObsEncounter is the encounter an observation belongs to.
type ObsEncounter struct {
	UUID          string `json:"uuid"`
	Form          Ref    `json:"form"`
	EncounterType Ref    `json:"encounterType"`
}

// Obs is a single observation.
type Obs struct {
	UUID               string        `json:"uuid,omitempty"`
	Concept            Ref           `json:"concept"`
	Value              ObsValue      `json:"value"`
	FormFieldPath      string        `json:"formFieldPath,omitempty"`
	FormFieldNamespace string        `json:"formFieldNamespace,omitempty"`
	Encounter          *ObsEncounter `json:"encounter,omitempty"`
}

// ObsValueKind discriminates observation values.
type ObsValueKind int

const (
	ObsValueEmpty ObsValueKind = iota
	ObsValueScalar
	ObsValueCoded
)

// ObsValue is either a scalar (kept as text) or a coded {uuid, display}
// value.
type ObsValue struct {
	Kind    ObsValueKind
	Text    string
	UUID    string
	Display string
}

// ScalarValue builds a scalar obs value.
func ScalarValue(s string) ObsValue { return ObsValue{Kind: ObsValueScalar, Text: s} }

// CodedValue builds a coded obs value.
func CodedValue(uuid, display string) ObsValue {
	return ObsValue{Kind: ObsValueCoded, UUID: uuid, Display: display}
}

func (v *ObsValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ObsValue{}
		return nil
	}
	switch data[0] {
	case '{':
		var coded struct {
			UUID    string `json:"uuid"`
			Display string `json:"display"`
			Name    *struct {
				Display string `json:"display"`
			} `json:"name"`
		}
		if err := json.Unmarshal(data, &coded); err != nil {
			*v = ScalarValue(string(data))
			return nil
		}
		display := coded.Display
		if display == "" && coded.Name != nil {
			display = coded.Name.Display
		}
		*v = CodedValue(coded.UUID, display)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*v = ScalarValue(string(data))
			return nil
		}
		*v = ScalarValue(s)
	default:
		*v = ScalarValue(formatNumber(string(data)))
	}
	return nil
}

func (v ObsValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ObsValueEmpty:
		return []byte("null"), nil
	case ObsValueCoded:
		return json.Marshal(struct {
			UUID    string `json:"uuid"`
			Display string `json:"display"`
		}{v.UUID, v.Display})
	default:
		return json.Marshal(v.Text)
	}
}

// String renders the value: coded values show their display, scalars their
// text.
func (v ObsValue) String() string {
	switch v.Kind {
	case ObsValueCoded:
		return v.Display
	case ObsValueScalar:
		return v.Text
	}
	return ""
}

// MatchKey is the text a filter operand is compared against: the uuid of a
// coded value, the text of a scalar.
func (v ObsValue) MatchKey() string {
	if v.Kind == ObsValueCoded {
		return v.UUID
	}
	return v.Text
}
