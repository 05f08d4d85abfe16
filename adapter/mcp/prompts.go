package mcp

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterPrompts registers prompts for common OCR workflows.
func RegisterPrompts(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}

	srv.Prompt("diagnose_engines").
		Description("Investigate degraded or failing OCR engines and suggest fixes.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			return &mcp.PromptResult{
				Description: "Engine Diagnosis",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: `Help me find out why OCR results are degraded. Please:

1. Read multiocr://health and list every engine that is not GREEN
2. Read multiocr://engines and report any init_error
3. Read multiocr://metrics and compare failure counts and breaker state
4. Call ocr.sinks to check that artifacts can be written

For each unhealthy engine, suggest the most likely cause (missing binary,
bad credentials, unsupported documents) and the configuration change that
would fix it.`,
						},
					},
				},
			}, nil
		})

	srv.Prompt("process_folder").
		Description("Run OCR over a folder and summarize the results.").
		Handler(func(ctx context.Context, args map[string]string) (*mcp.PromptResult, error) {
			path := args["path"]
			if path == "" {
				path = "the folder I name"
			}
			return &mcp.PromptResult{
				Description: "Process Folder",
				Messages: []mcp.PromptMessage{
					{
						Role: string(mcp.RoleUser),
						Content: mcp.TextContent{
							Type: "text",
							Text: fmt.Sprintf(`Run ocr.process on %s. Then report how many documents were processed,
which documents failed and why, and the overall health after the batch.`, path),
						},
					},
				},
			}, nil
		})

	return nil
}
