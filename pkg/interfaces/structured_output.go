package interfaces

import "encoding/json"

// ResponseFormat defines the format of the response from the LLM
type ResponseFormat struct {
	Type   ResponseFormatType
	Name   string     // Name of the object to be returned
	Schema JSONSchema // JSON schema the object must satisfy
}

// JSONSchema is a decoded JSON schema document
type JSONSchema map[string]interface{}

// MarshalJSON implements the json.Marshaler interface
func (s JSONSchema) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}(s))
}

// ResponseFormatType names the kind of structured output requested
type ResponseFormatType string

const (
	ResponseFormatJSON       ResponseFormatType = "json_object"
	ResponseFormatJSONSchema ResponseFormatType = "json_schema"
	ResponseFormatText       ResponseFormatType = "text"
)
