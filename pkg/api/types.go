package api

// ProcessMessageRequest is the expected body for POST /messages.
type ProcessMessageRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
	Category  string `json:"category" validate:"required"`
	Message   string `json:"message" validate:"required,max=4000"`
}

// ProcessMessageResponse reports a triage outcome.
type ProcessMessageResponse struct {
	RunID           string                 `json:"run_id"`
	ProcessedResult map[string]interface{} `json:"processed_result"`
	IsUpdate        bool                   `json:"is_update"`
	DBResult        map[string]interface{} `json:"db_result,omitempty"`
}

// UpdateItemRequest is the expected body for
// PATCH /channels/{channelID}/items/{itemID}.
type UpdateItemRequest struct {
	Category string                 `json:"category" validate:"required"`
	Updates  map[string]interface{} `json:"updates" validate:"required,min=1"`
}

// ItemsResponse lists one channel's tracked items for a category.
type ItemsResponse struct {
	ChannelID string                   `json:"channel_id"`
	Category  string                   `json:"category"`
	Items     []map[string]interface{} `json:"items"`
}

// ChannelResponse is the updated channel row returned by item updates.
type ChannelResponse struct {
	ChannelID string                   `json:"channel_id"`
	Items     []map[string]interface{} `json:"items"`
	Version   int64                    `json:"version"`
	UpdatedAt string                   `json:"updated_at,omitempty"`
}

// FlowSummary is the catalog view of one flow document.
type FlowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
}

// FlowListResponse lists the available flow documents.
type FlowListResponse struct {
	Flows []FlowSummary `json:"flows"`
}

// ValidateFlowResponse reports the outcome of a flow document validation.
type ValidateFlowResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// RunFlowRequest is the expected body for POST /flows/{flowID}/run.
// Tweaks overlay node input values by node id before execution.
type RunFlowRequest struct {
	Tweaks map[string]map[string]interface{} `json:"tweaks,omitempty"`
}

// KnowledgeQueryRequest is the expected body for POST /knowledge/query.
type KnowledgeQueryRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// ReadyResponse reports dependency health for readiness probes.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
