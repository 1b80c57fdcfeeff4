// Package llm defines the model-agnostic LLM provider abstraction.
// All types here are shared between the provider interface and adapters.
package llm

// Blob is inline binary content (an image) sent alongside the prompt.
type Blob struct {
	MIMEType string
	Data     []byte
}

// Part is one piece of a user turn: either text or inline data.
type Part struct {
	Text       string
	InlineData *Blob
}

// TextPart returns a Part carrying text.
func TextPart(text string) Part { return Part{Text: text} }

// InlinePart returns a Part carrying inline bytes with their declared MIME type.
func InlinePart(mimeType string, data []byte) Part {
	return Part{InlineData: &Blob{MIMEType: mimeType, Data: data}}
}

// SchemaType mirrors the OpenAPI subset understood by structured-output providers.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

// Schema describes the JSON shape the model must answer with.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
}

// GenerateRequest is the input for a single, non-streaming generation call.
type GenerateRequest struct {
	// Model overrides the provider default when non-empty.
	Model             string
	SystemInstruction string
	Parts             []Part
	// ResponseSchema constrains the output when non-nil.
	ResponseSchema   *Schema
	ResponseMIMEType string
	Temperature      float32
}

// GenerateResponse is the raw model output.
type GenerateResponse struct {
	Text       string // Concatenated text of the first candidate.
	StopReason string
	Tokens     int // Total tokens consumed, when reported.
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID       string // e.g. "gemini-2.5-flash", "llava:7b"
	Provider string // e.g. "gemini", "ollama"
}
