package patientgrid

// AllPrivileges grants every encounter type privilege.
const AllPrivileges = "*"

// UsableForms keeps the forms a user may build a grid from: published, not
// retired, backed by a JSON schema, and either free of an encounter type
// privilege or guarded by one the user holds.
func UsableForms(forms []Form, privileges []string) []Form {
	held := make(map[string]struct{}, len(privileges))
	for _, p := range privileges {
		held[p] = struct{}{}
	}
	_, all := held[AllPrivileges]
	var out []Form
	for _, f := range forms {
		if !f.Published || f.Retired || f.SchemaReference() == "" {
			continue
		}
		if f.EncounterTypePrivilege != "" && !all {
			if _, ok := held[f.EncounterTypePrivilege]; !ok {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// FormsInReport keeps, in their original order, the forms that contribute at
// least one column to a report's column set.
func FormsInReport(forms []Form, present map[string]struct{}) []Form {
	ids := make(map[string]struct{})
	for name := range present {
		if id, ok := FormIDFromColumnName(name); ok {
			ids[id] = struct{}{}
		}
	}
	var out []Form
	for _, f := range forms {
		if _, ok := ids[f.UUID]; ok {
			out = append(out, f)
		}
	}
	return out
}

// FormsByUUID indexes forms by uuid.
func FormsByUUID(forms []Form) map[string]*Form {
	idx := make(map[string]*Form, len(forms))
	for i := range forms {
		idx[forms[i].UUID] = &forms[i]
	}
	return idx
}
