package common

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/gdriveapp/internal/instrumentation"
	"github.com/teemow/gdriveapp/internal/server"
)

// resourceArgs are the argument names that identify the Drive object a
// tool acts on, in order of preference.
var resourceArgs = []string{"file_id", "folder_id", "parent_id"}

// InstrumentedToolHandler wraps a tool handler with a tool span, metrics
// and audit logging. Errors returned as tool results (IsError) count as
// failures.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("drive_get_file", instrumentation.OperationGet, sc, handler))
func InstrumentedToolHandler(
	toolName string,
	operation string,
	sc *server.ServerContext,
	handler mcpserver.ToolHandlerFunc,
) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			attribute.String(instrumentation.SpanAttrOperation, operation))
		defer span.End()

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithService(instrumentation.ServiceDrive, operation)

		args := request.GetArguments()
		for _, key := range resourceArgs {
			if id := GetString(args, key); id != "" {
				invocation.WithResource(id)
				span.SetAttributes(attribute.String(instrumentation.SpanAttrFileID, id))
				break
			}
		}

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		switch {
		case err != nil:
			status = instrumentation.StatusError
			invocation.CompleteWithError(err)
			instrumentation.SetSpanError(span, err)
		case result != nil && result.IsError:
			status = instrumentation.StatusError
			resultErr := errors.New(ResultText(result))
			invocation.CompleteWithError(resultErr)
			instrumentation.SetSpanError(span, resultErr)
		default:
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
		}

		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)
		sc.AuditLogger().LogToolInvocation(invocation)

		return result, err
	}
}
