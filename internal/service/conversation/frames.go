package conversation

// Outbound frames, the only shapes a client ever sees.

// TextFrame carries an assistant text response.
type TextFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Chunk   bool   `json:"chunk"`
}

// ToolUseFrame reports a completed tool execution and its result.
type ToolUseFrame struct {
	Type   string `json:"type"`
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// ErrorFrame surfaces a provider failure for the current turn.
type ErrorFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// DoneFrame marks the end of one turn's output.
type DoneFrame struct {
	Type string `json:"type"`
}
