package flow

// IDs of the flows this service ships with.
const (
	MessageProcessingFlowID = "message-processing-flow"
	KnowledgeQueryFlowID    = "knowledge-query-flow"
)

// Node ids inside the built-in flows, used by callers that inject tweaks.
const (
	ProcessorNodeID = "message-processor-1"
	WriterNodeID    = "dynamodb-1"
	KnowledgeNodeID = "knowledge-1"
)

// BuiltinMessageProcessing builds the canonical triage flow: the message
// processor's result feeds the DynamoDB writer's new_item input.
func BuiltinMessageProcessing() *Document {
	doc := &Document{
		ID:          MessageProcessingFlowID,
		Name:        "Message Processing Flow",
		Description: "Triages a channel message into a category tracker and persists the outcome.",
		Nodes: []Node{
			{
				ID:       ProcessorNodeID,
				Type:     "MessageProcessorComponent",
				Position: Position{X: 100, Y: 200},
				Data: map[string]any{
					"category":       "BUGS",
					"channel_id":     "",
					"message":        "",
					"existing_items": []any{},
				},
			},
			{
				ID:       WriterNodeID,
				Type:     "DynamoDBComponent",
				Position: Position{X: 480, Y: 200},
				Data: map[string]any{
					"operation":  "append_message",
					"table_name": "BUGS",
					"channel_id": "",
				},
			},
		},
		Edges: []Edge{
			{
				Source:       ProcessorNodeID,
				SourceHandle: "result",
				Target:       WriterNodeID,
				TargetHandle: "new_item",
			},
		},
	}
	doc.Edges[0].ID = doc.Edges[0].DefaultID()
	return doc
}

// BuiltinKnowledgeQuery builds the single-node knowledge base query flow.
func BuiltinKnowledgeQuery() *Document {
	return &Document{
		ID:          KnowledgeQueryFlowID,
		Name:        "Knowledge Query Flow",
		Description: "Answers a question from the team knowledge base with cited sources.",
		Nodes: []Node{
			{
				ID:       KnowledgeNodeID,
				Type:     "BedrockKnowledgeComponent",
				Position: Position{X: 100, Y: 200},
				Data: map[string]any{
					"question": "",
				},
			},
		},
	}
}

// Builtins lists all built-in flow documents.
func Builtins() []*Document {
	return []*Document{
		BuiltinMessageProcessing(),
		BuiltinKnowledgeQuery(),
	}
}
