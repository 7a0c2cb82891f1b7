package wizard

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Page is a step of the grid creation wizard.
type Page string

const (
	PageDetails  Page = "details"
	PageSections Page = "sections"
	PageFilters  Page = "filters"
)

var pageOrder = []Page{PageDetails, PageSections, PageFilters}

var (
	ErrPageIncomplete = errors.New("page is incomplete")
	ErrCannotSubmit   = errors.New("draft cannot be submitted")
	ErrNoPage         = errors.New("no page in that direction")
	ErrInvalidDraft   = errors.New("invalid draft")
	ErrDraftNotFound  = errors.New("draft not found")
)

// FilterKind names one of the patient detail filters a draft may set.
type FilterKind string

const (
	FilterCountry     FilterKind = "country"
	FilterStructure   FilterKind = "structure"
	FilterGender      FilterKind = "gender"
	FilterAgeCategory FilterKind = "ageCategory"
)

// FilterKinds lists the filter kinds in the order they are serialised.
func FilterKinds() []FilterKind {
	return []FilterKind{FilterCountry, FilterStructure, FilterGender, FilterAgeCategory}
}

func validFilterKind(k FilterKind) bool {
	for _, known := range FilterKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// FilterSelection is the value chosen for a patient detail filter.
type FilterSelection struct {
	Name    string `json:"name"`
	Operand string `json:"operand"`
}

// Period restricts encounters to a date range. Either bound may be open.
type Period struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Set reports whether at least one bound is given.
func (p *Period) Set() bool {
	return p != nil && (p.From != nil || p.To != nil)
}

// Operand renders the period as "<from>,<to>" with RFC 3339 dates.
func (p *Period) Operand() string {
	var from, to string
	if p.From != nil {
		from = p.From.UTC().Format(time.RFC3339)
	}
	if p.To != nil {
		to = p.To.UTC().Format(time.RFC3339)
	}
	return from + "," + to
}

// Draft is a grid being built in the wizard.
type Draft struct {
	ID          string                          `json:"id"`
	Page        Page                            `json:"page"`
	Name        string                          `json:"name"`
	Description string                          `json:"description"`
	Shared      bool                            `json:"shared"`
	Filters     map[FilterKind]*FilterSelection `json:"filters"`
	Forms       []string                        `json:"forms"`
	Period      *Period                         `json:"period,omitempty"`
	CreatedAt   time.Time                       `json:"createdAt"`
	UpdatedAt   time.Time                       `json:"updatedAt"`
}

func newDraft(id string, now time.Time) *Draft {
	return &Draft{
		ID:        id,
		Page:      PageDetails,
		Filters:   map[FilterKind]*FilterSelection{},
		Forms:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (d *Draft) hasFilter(k FilterKind) bool {
	f := d.Filters[k]
	return f != nil && strings.TrimSpace(f.Operand) != ""
}

// Missing lists what keeps the current page from being left forward, or on
// the last page what keeps the draft from being submitted.
func (d *Draft) Missing() []string {
	var out []string
	nameSet := strings.TrimSpace(d.Name) != ""
	switch d.Page {
	case PageDetails:
		if !nameSet {
			out = append(out, "name")
		}
	case PageSections:
		if len(d.Forms) == 0 {
			out = append(out, "forms")
		}
	default:
		if !nameSet {
			out = append(out, "name")
		}
		if len(d.Forms) == 0 {
			out = append(out, "forms")
		}
		if !d.hasFilter(FilterCountry) && !d.hasFilter(FilterStructure) {
			out = append(out, "country or structure")
		}
		if !d.Period.Set() {
			out = append(out, "period")
		}
	}
	return out
}

func (d *Draft) pageIndex() int {
	for i, p := range pageOrder {
		if p == d.Page {
			return i
		}
	}
	return 0
}

// CanGoNext reports whether the current page is complete and followed by
// another.
func (d *Draft) CanGoNext() bool {
	return d.pageIndex() < len(pageOrder)-1 && len(d.Missing()) == 0
}

func (d *Draft) CanGoBack() bool {
	return d.pageIndex() > 0
}

// CanSubmit reports whether every submission requirement is met, whatever
// the current page.
func (d *Draft) CanSubmit() bool {
	probe := *d
	probe.Page = PageFilters
	return len(probe.Missing()) == 0
}

// Next moves one page forward.
func (d *Draft) Next() error {
	i := d.pageIndex()
	if i == len(pageOrder)-1 {
		return ErrNoPage
	}
	if missing := d.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrPageIncomplete, strings.Join(missing, ", "))
	}
	d.Page = pageOrder[i+1]
	return nil
}

// Back moves one page back.
func (d *Draft) Back() error {
	i := d.pageIndex()
	if i == 0 {
		return ErrNoPage
	}
	d.Page = pageOrder[i-1]
	return nil
}

// Patch updates draft fields. Only fields present in the request are
// changed; a filter set to null is cleared.
type Patch struct {
	Name        *string                         `json:"name"`
	Description *string                         `json:"description"`
	Shared      *bool                           `json:"shared"`
	Filters     map[FilterKind]*FilterSelection `json:"filters"`
	Forms       *[]string                       `json:"forms"`
	Period      *Period                         `json:"period"`
}

// Apply applies p to d.
func (p Patch) Apply(d *Draft) error {
	for k := range p.Filters {
		if !validFilterKind(k) {
			return fmt.Errorf("%w: unknown filter %q", ErrInvalidDraft, k)
		}
	}
	if p.Forms != nil {
		seen := make(map[string]struct{}, len(*p.Forms))
		for _, id := range *p.Forms {
			if strings.TrimSpace(id) == "" {
				return fmt.Errorf("%w: empty form uuid", ErrInvalidDraft)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: form %s selected twice", ErrInvalidDraft, id)
			}
			seen[id] = struct{}{}
		}
	}
	if p.Period != nil && p.Period.From != nil && p.Period.To != nil && p.Period.To.Before(*p.Period.From) {
		return fmt.Errorf("%w: period ends before it starts", ErrInvalidDraft)
	}

	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Shared != nil {
		d.Shared = *p.Shared
	}
	if d.Filters == nil {
		d.Filters = map[FilterKind]*FilterSelection{}
	}
	for k, sel := range p.Filters {
		if sel == nil {
			delete(d.Filters, k)
			continue
		}
		s := *sel
		d.Filters[k] = &s
	}
	if p.Forms != nil {
		d.Forms = append([]string{}, *p.Forms...)
	}
	if p.Period != nil {
		period := *p.Period
		d.Period = &period
	}
	return nil
}
