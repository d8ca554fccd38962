package models

// InputMode describes how many files a tool accepts per submission.
type InputMode string

const (
	InputSingle   InputMode = "single"
	InputMultiple InputMode = "multiple"
)

// ToolDescriptor is the read-only view of a tool that a submission carries.
// It is derived from the catalog at submission time and never mutated by the
// orchestrator. OptionFields holds the raw string values the user entered;
// empty values are dropped before the request body is assembled.
type ToolDescriptor struct {
	ToolID       string            `json:"toolId"`
	ToolName     string            `json:"toolName"`
	CategoryID   string            `json:"categoryId"`
	ToolIndex    int               `json:"toolIndex"`
	InputMode    InputMode         `json:"inputMode"`
	MinFiles     int               `json:"minFiles"`
	OptionFields map[string]string `json:"optionFields,omitempty"`
}
