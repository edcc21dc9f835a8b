package dto

// Projects

type CreateProjectRequest struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // viewer / manager
}

// Stakeholders
//
// All field values travel as strings, mirroring form submission; the
// service's dispatch table parses typed fields. Absent pointer = field not
// submitted; empty string = clear the field.

type StakeholderFieldsRequest struct {
	Name                *string `json:"name,omitempty"`
	Title               *string `json:"title,omitempty"`
	LocationType        *string `json:"location_type,omitempty"`
	ProjectRole         *string `json:"project_role,omitempty"`
	PrimaryNeeds        *string `json:"primary_needs,omitempty"`
	Expectations        *string `json:"expectations,omitempty"`
	ParticipationDegree *string `json:"participation_degree,omitempty"`
	Power               *string `json:"power,omitempty"`
	Interest            *string `json:"interest,omitempty"`
	Position            *string `json:"position,omitempty"`
}

type InlineUpdateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}
