package diagnosis

import (
	"fmt"

	"github.com/matiasleandrokruk/cropdoctor/internal/infra/llm"
)

// SystemInstruction is attached to every provider request.
const SystemInstruction = `You are CropDoctor, an AI Agricultural Disease Expert. Your sole purpose is to identify crop diseases, pest attacks, or nutrient deficiencies from images or text descriptions. You must only recommend safe, low-cost, organic treatments suitable for farmers. Do not suggest chemical-based solutions. Analyze the user's input and provide a diagnosis in the specified JSON format. If the input is unclear, politely state that you need more details or a better image in the 'issueName' field and leave other fields as empty or not applicable.`

// ImagePrompt follows the inline image part in image mode.
const ImagePrompt = "Analyze the plant in this image for diseases, pests, or nutrient deficiencies."

const (
	responseMIMEType = "application/json"
	temperature      = 0.5
)

// TextPrompt wraps the user's symptom description.
func TextPrompt(text string) string {
	return fmt.Sprintf("Analyze the following plant symptoms: \"%s\"", text)
}

// Field names of the response object.
const (
	FieldCrop             = "crop"
	FieldIssueName        = "issueName"
	FieldCause            = "cause"
	FieldOrganicTreatment = "organicTreatment"
	FieldPreventionTips   = "preventionTips"
	FieldExpertHelp       = "expertHelp"
)

// RequiredFields lists every field a valid response must carry.
var RequiredFields = []string{
	FieldCrop, FieldIssueName, FieldCause, FieldOrganicTreatment, FieldPreventionTips, FieldExpertHelp,
}

// ResponseSchema returns a fresh copy of the output schema sent to the provider.
func ResponseSchema() *llm.Schema {
	stringList := func(desc string) *llm.Schema {
		return &llm.Schema{Type: llm.TypeArray, Items: &llm.Schema{Type: llm.TypeString}, Description: desc}
	}
	text := func(desc string) *llm.Schema {
		return &llm.Schema{Type: llm.TypeString, Description: desc}
	}

	required := make([]string, len(RequiredFields))
	copy(required, RequiredFields)

	return &llm.Schema{
		Type: llm.TypeObject,
		Properties: map[string]*llm.Schema{
			FieldCrop:             text(`The type of crop (e.g., Rice, Tomato, Potato). If not identifiable, state "Unknown Crop".`),
			FieldIssueName:        text("The common name of the disease, pest, or deficiency. If the input is unclear, state that you need more details or a better image."),
			FieldCause:            text("The likely cause (e.g., fungus, bacteria, specific pest, nutrient deficiency). If unclear, leave this field empty."),
			FieldOrganicTreatment: stringList(`A list of safe, organic treatment steps. Provide at least two actionable steps. If no issue is found, state "No treatment necessary".`),
			FieldPreventionTips:   stringList("A list of tips to prevent the issue in the future. If no issue is found, provide general plant health tips."),
			FieldExpertHelp:       text(`Guidance on when to seek help from a professional agricultural expert. If no issue is found, state "Not applicable".`),
		},
		Required: required,
	}
}

// BuildRequest shapes a validated Input into the provider request. The
// system instruction, schema, JSON MIME type and temperature are always set.
func BuildRequest(in Input) llm.GenerateRequest {
	req := llm.GenerateRequest{
		SystemInstruction: SystemInstruction,
		ResponseSchema:    ResponseSchema(),
		ResponseMIMEType:  responseMIMEType,
		Temperature:       temperature,
	}
	switch in.Mode {
	case ModeImage:
		req.Parts = []llm.Part{llm.InlinePart(in.MIMEType, in.Image), llm.TextPart(ImagePrompt)}
	default:
		req.Parts = []llm.Part{llm.TextPart(TextPrompt(in.Text))}
	}
	return req
}
