// Package mcpserver exposes crop diagnosis as a Model Context Protocol tool so
// agents can call it over stdio.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/matiasleandrokruk/cropdoctor/internal/domain/diagnosis"
	"github.com/matiasleandrokruk/cropdoctor/internal/i18n"
	"github.com/matiasleandrokruk/cropdoctor/internal/infra/logger"
	"github.com/matiasleandrokruk/cropdoctor/internal/report"
)

// ToolName is the name agents call.
const ToolName = "diagnose_crop"

const toolDescription = "Diagnose a crop problem from a description of the symptoms or a photo. " +
	"Returns the crop, the likely issue and its cause, organic treatments, prevention tips " +
	"and when to seek expert help. Provide either text or image (base64) with mimeType."

// Analyzer runs one analysis. *diagnosis.Service satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, in diagnosis.Input) (*diagnosis.Diagnosis, error)
}

// DiagnoseInput is the tool's argument object.
type DiagnoseInput struct {
	Text     string `json:"text,omitempty" jsonschema:"plain-language description of the symptoms"`
	Image    string `json:"image,omitempty" jsonschema:"base64-encoded photo of the affected plant"`
	MIMEType string `json:"mimeType,omitempty" jsonschema:"image MIME type: image/png, image/jpeg or image/webp"`
	Locale   string `json:"locale,omitempty" jsonschema:"language for headings and errors: en, es, hi or te"`
}

type tool struct {
	analyzer Analyzer
	bundle   *i18n.Bundle
	log      logger.Logger
}

// New builds an MCP server with the diagnose_crop tool.
func New(analyzer Analyzer, bundle *i18n.Bundle, log logger.Logger, version string) *mcp.Server {
	if bundle == nil {
		bundle = i18n.Default()
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	t := &tool{analyzer: analyzer, bundle: bundle, log: log}

	server := mcp.NewServer(&mcp.Implementation{Name: "cropdoctor", Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: ToolName, Description: toolDescription}, t.diagnose)
	return server
}

// Run serves server over stdin/stdout until the client disconnects or ctx
// is cancelled.
func Run(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// diagnose returns the Diagnosis as structured content plus a Markdown
// rendering. Input and analysis failures are tool errors carrying the
// localized message, never protocol errors.
func (t *tool) diagnose(ctx context.Context, _ *mcp.CallToolRequest, args DiagnoseInput) (*mcp.CallToolResult, any, error) {
	locale := t.bundle.Match(args.Locale, "", "")

	in := diagnosis.Input{Mode: diagnosis.ModeText, Text: args.Text}
	if strings.TrimSpace(args.Image) != "" {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(args.Image))
		if err != nil {
			return t.toolError(locale, diagnosis.MsgErrorImage), nil, nil
		}
		in = diagnosis.Input{Mode: diagnosis.ModeImage, Image: data, MIMEType: args.MIMEType}
	}

	d, err := t.analyzer.Analyze(ctx, in)
	if err != nil {
		t.log.WithError(err).Warn("mcp diagnose failed", map[string]interface{}{"mode": string(in.Mode)})
		return t.toolError(locale, diagnosis.UserMessageKey(err)), nil, nil
	}

	structured, err := json.Marshal(d)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: report.Markdown(d, t.bundle, locale)}},
		StructuredContent: json.RawMessage(structured),
	}, nil, nil
}

func (t *tool) toolError(locale, key string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: t.bundle.T(locale, key)}},
	}
}
