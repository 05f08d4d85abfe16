package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/mcp-go"
)

// RegisterResources exposes health, engines and metrics as JSON resources.
func RegisterResources(srv *mcp.Server, deps ToolDependencies) error {
	if srv == nil {
		return fmt.Errorf("server is required")
	}
	if deps.Service == nil {
		return fmt.Errorf("service is required")
	}
	svc := deps.Service

	jsonResource(srv, "multiocr://health", "Health",
		"Overall health and the outcome window of every engine",
		func() any { return svc.Health() })

	jsonResource(srv, "multiocr://engines", "Engines",
		"Registered engines in registration order",
		func() any { return svc.Describe() })

	jsonResource(srv, "multiocr://metrics", "Metrics",
		"Per-engine metrics snapshot",
		func() any { return svc.Metrics() })

	return nil
}

func jsonResource(srv *mcp.Server, uri, name, description string, load func() any) {
	srv.Resource(uri).
		Name(name).
		Description(description).
		MimeType("application/json").
		Handler(func(ctx context.Context, uri string, params map[string]string) (*mcp.ResourceContent, error) {
			data, err := json.MarshalIndent(load(), "", "  ")
			if err != nil {
				return nil, err
			}
			return &mcp.ResourceContent{
				URI:      uri,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})
}
