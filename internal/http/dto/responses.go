package dto

type ErrorResponse struct {
	Error     string   `json:"error"`
	Errors    []string `json:"errors,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type UpdateResponse struct {
	OK            bool     `json:"ok"`
	Data          any      `json:"data,omitempty"`
	ChangedFields []string `json:"changed_fields"`
}

type InlineUpdateResponse struct {
	OK             bool   `json:"ok"`
	FormattedValue string `json:"formatted_value"`
}
