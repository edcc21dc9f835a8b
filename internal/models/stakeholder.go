package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Location types
const (
	LocationInternal = "internal"
	LocationExternal = "external"
)

var LocationTypes = []string{LocationInternal, LocationExternal}

// Participation degrees, ordered from least to most engaged.
const (
	DegreeCompletelyUnaware = "completely_unaware"
	DegreeResistant         = "resistant"
	DegreeNeutral           = "neutral"
	DegreeSupportive        = "supportive"
	DegreeLeading           = "leading"
)

var ParticipationDegrees = []string{
	DegreeCompletelyUnaware,
	DegreeResistant,
	DegreeNeutral,
	DegreeSupportive,
	DegreeLeading,
}

var locationTypeLabels = map[string]string{
	LocationInternal: "Internal",
	LocationExternal: "External",
}

var participationDegreeLabels = map[string]string{
	DegreeCompletelyUnaware: "Completely Unaware",
	DegreeResistant:         "Resistant",
	DegreeNeutral:           "Neutral",
	DegreeSupportive:        "Supportive",
	DegreeLeading:           "Leading",
}

type Stakeholder struct {
	ID                    uuid.UUID `json:"id"`
	ProjectID             uuid.UUID `json:"project_id"`
	ProjectSequenceNumber int       `json:"project_sequence_number"`
	Name                  string    `json:"name"`
	Title                 string    `json:"title,omitempty"`
	LocationType          string    `json:"location_type,omitempty"`
	ProjectRole           string    `json:"project_role,omitempty"`
	PrimaryNeeds          string    `json:"primary_needs,omitempty"`
	Expectations          string    `json:"expectations,omitempty"`
	ParticipationDegree   string    `json:"participation_degree,omitempty"`
	Power                 *int      `json:"power,omitempty"`
	Interest              *int      `json:"interest,omitempty"`
	Position              int       `json:"position"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// LocationTypeLabel returns the display label for the stored code, the raw
// code when unknown, and "" when blank.
func (s *Stakeholder) LocationTypeLabel() string {
	return FormatFieldValue(FieldLocationType, s.LocationType)
}

func (s *Stakeholder) ParticipationDegreeLabel() string {
	return FormatFieldValue(FieldParticipationDegree, s.ParticipationDegree)
}

// Field names accepted by the update paths. Whitelisting is an explicit
// dispatch table keyed by these constants; unknown names are rejected
// before anything touches the record.
const (
	FieldName                = "name"
	FieldTitle               = "title"
	FieldLocationType        = "location_type"
	FieldProjectRole         = "project_role"
	FieldPrimaryNeeds        = "primary_needs"
	FieldExpectations        = "expectations"
	FieldParticipationDegree = "participation_degree"
	FieldPower               = "power"
	FieldInterest            = "interest"
	FieldPosition            = "position"
)

type fieldOp struct {
	get    func(*Stakeholder) string
	set    func(*Stakeholder, string) error
	inline bool // eligible for single-field inline editing
}

var fieldOps = map[string]fieldOp{
	FieldName: {
		get:    func(s *Stakeholder) string { return s.Name },
		set:    func(s *Stakeholder, v string) error { s.Name = v; return nil },
		inline: true,
	},
	FieldTitle: {
		get:    func(s *Stakeholder) string { return s.Title },
		set:    func(s *Stakeholder, v string) error { s.Title = v; return nil },
		inline: true,
	},
	FieldLocationType: {
		get:    func(s *Stakeholder) string { return s.LocationType },
		set:    func(s *Stakeholder, v string) error { s.LocationType = v; return nil },
		inline: true,
	},
	FieldProjectRole: {
		get:    func(s *Stakeholder) string { return s.ProjectRole },
		set:    func(s *Stakeholder, v string) error { s.ProjectRole = v; return nil },
		inline: true,
	},
	FieldPrimaryNeeds: {
		get:    func(s *Stakeholder) string { return s.PrimaryNeeds },
		set:    func(s *Stakeholder, v string) error { s.PrimaryNeeds = v; return nil },
		inline: true,
	},
	FieldExpectations: {
		get:    func(s *Stakeholder) string { return s.Expectations },
		set:    func(s *Stakeholder, v string) error { s.Expectations = v; return nil },
		inline: true,
	},
	FieldParticipationDegree: {
		get:    func(s *Stakeholder) string { return s.ParticipationDegree },
		set:    func(s *Stakeholder, v string) error { s.ParticipationDegree = v; return nil },
		inline: true,
	},
	FieldPower: {
		get:    func(s *Stakeholder) string { return intPtrString(s.Power) },
		set:    func(s *Stakeholder, v string) error { return setIntPtr(&s.Power, FieldPower, v) },
		inline: true,
	},
	FieldInterest: {
		get:    func(s *Stakeholder) string { return intPtrString(s.Interest) },
		set:    func(s *Stakeholder, v string) error { return setIntPtr(&s.Interest, FieldInterest, v) },
		inline: true,
	},
	FieldPosition: {
		get: func(s *Stakeholder) string { return strconv.Itoa(s.Position) },
		set: func(s *Stakeholder, v string) error {
			if strings.TrimSpace(v) == "" {
				s.Position = 0
				return nil
			}
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("position must be an integer")
			}
			s.Position = n
			return nil
		},
		inline: false,
	},
}

func intPtrString(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

func setIntPtr(dst **int, field, v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		*dst = nil
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s must be an integer", field)
	}
	*dst = &n
	return nil
}

// IsUpdatableField reports whether the field may be changed via the full
// update path.
func IsUpdatableField(name string) bool {
	_, ok := fieldOps[name]
	return ok
}

// IsInlineField reports whether the field may be changed via the inline
// single-field path. Position is excluded: ordering is managed by the list
// view, not the inline editor.
func IsInlineField(name string) bool {
	op, ok := fieldOps[name]
	return ok && op.inline
}

// FieldValue returns the record's current raw value for a whitelisted field
// as a string ("" for unset optional fields).
func (s *Stakeholder) FieldValue(name string) (string, bool) {
	op, ok := fieldOps[name]
	if !ok {
		return "", false
	}
	return op.get(s), true
}

// SetFieldValue parses and assigns a raw string value to a whitelisted
// field. Parse errors come back as a ValidationError for that field.
func (s *Stakeholder) SetFieldValue(name, value string) error {
	op, ok := fieldOps[name]
	if !ok {
		return &ForbiddenFieldError{Field: name}
	}
	if err := op.set(s, value); err != nil {
		ve := &ValidationError{}
		ve.Add(name, err.Error())
		return ve
	}
	return nil
}

// FormatFieldValue converts a raw stored value to its display form. Enum
// codes become labels; unknown codes pass through raw; blanks become "".
// The audit ledger stores the output of this function, not raw codes.
func FormatFieldValue(field, raw string) string {
	if raw == "" {
		return ""
	}
	switch field {
	case FieldLocationType:
		if label, ok := locationTypeLabels[raw]; ok {
			return label
		}
	case FieldParticipationDegree:
		if label, ok := participationDegreeLabels[raw]; ok {
			return label
		}
	}
	return raw
}

// InlineDisplayValue renders a field for the inline-edit cell: enum labels
// for coded fields, long free text truncated, everything else raw.
func InlineDisplayValue(field string, s *Stakeholder) string {
	raw, ok := s.FieldValue(field)
	if !ok {
		return ""
	}
	switch field {
	case FieldLocationType, FieldParticipationDegree:
		return FormatFieldValue(field, raw)
	case FieldPrimaryNeeds, FieldExpectations:
		return truncate(raw, 50)
	default:
		return raw
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

const (
	maxShortText = 255
	maxLongText  = 2000
)

// Validate checks every constraint on the record. All violations are
// collected so a multi-field update reports everything wrong at once.
func (s *Stakeholder) Validate() error {
	ve := &ValidationError{}

	if strings.TrimSpace(s.Name) == "" {
		ve.Add(FieldName, "name is required")
	} else if utf8.RuneCountInString(s.Name) > maxShortText {
		ve.Add(FieldName, fmt.Sprintf("name must be at most %d characters", maxShortText))
	}
	if utf8.RuneCountInString(s.Title) > maxShortText {
		ve.Add(FieldTitle, fmt.Sprintf("title must be at most %d characters", maxShortText))
	}
	if utf8.RuneCountInString(s.ProjectRole) > maxShortText {
		ve.Add(FieldProjectRole, fmt.Sprintf("project_role must be at most %d characters", maxShortText))
	}
	if utf8.RuneCountInString(s.PrimaryNeeds) > maxLongText {
		ve.Add(FieldPrimaryNeeds, fmt.Sprintf("primary_needs must be at most %d characters", maxLongText))
	}
	if utf8.RuneCountInString(s.Expectations) > maxLongText {
		ve.Add(FieldExpectations, fmt.Sprintf("expectations must be at most %d characters", maxLongText))
	}
	if s.LocationType != "" && locationTypeLabels[s.LocationType] == "" {
		ve.Add(FieldLocationType, "location_type must be internal or external")
	}
	if s.ParticipationDegree != "" && participationDegreeLabels[s.ParticipationDegree] == "" {
		ve.Add(FieldParticipationDegree, "participation_degree is not a valid degree")
	}
	if s.Power != nil && (*s.Power < 1 || *s.Power > 5) {
		ve.Add(FieldPower, "power must be between 1 and 5")
	}
	if s.Interest != nil && (*s.Interest < 1 || *s.Interest > 5) {
		ve.Add(FieldInterest, "interest must be between 1 and 5")
	}
	if s.Position < 0 {
		ve.Add(FieldPosition, "position must not be negative")
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}
