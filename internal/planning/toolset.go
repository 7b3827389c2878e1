package planning

import (
	"context"
	"fmt"
	"sync"
)

// ToolSet dispatches catalog tool names to Planning client calls. It resolves
// the application name once, on first use, from the applications listing.
type ToolSet struct {
	client *Client

	mu      sync.Mutex
	appName string
}

// NewToolSet wraps a client for tool-name dispatch.
func NewToolSet(client *Client) *ToolSet {
	return &ToolSet{client: client}
}

// resolveApp discovers and caches the application name.
func (ts *ToolSet) resolveApp(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.appName != "" {
		return ts.appName, nil
	}

	data, err := ts.client.GetApplications(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to discover application: %w", err)
	}

	items, _ := data["items"].([]any)
	if len(items) == 0 {
		return "", fmt.Errorf("no planning applications available")
	}
	first, _ := items[0].(map[string]any)
	name, _ := first["name"].(string)
	if name == "" {
		return "", fmt.Errorf("application listing has no name")
	}

	ts.appName = name
	return name, nil
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func mapArg(args map[string]any, key string) map[string]any {
	v, _ := args[key].(map[string]any)
	return v
}

// requireArg returns a named string argument or an error if absent.
func requireArg(args map[string]any, key string) (string, error) {
	v := stringArg(args, key)
	if v == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

// Run executes one catalog tool by name. Unknown names are an error; tool
// failures are returned as errors for the caller to record.
func (ts *ToolSet) Run(ctx context.Context, toolName string, args map[string]any) (any, error) {
	if args == nil {
		args = map[string]any{}
	}

	switch toolName {
	case "get_application_info":
		return ts.client.GetApplications(ctx)

	case "get_rest_api_version":
		return ts.client.GetRESTAPIVersion(ctx)

	case "list_jobs":
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.ListJobs(ctx, app)

	case "get_job_status":
		jobID, err := requireArg(args, "job_id")
		if err != nil {
			return nil, err
		}
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.GetJobStatus(ctx, app, jobID)

	case "execute_job":
		jobName, err := requireArg(args, "job_name")
		if err != nil {
			return nil, err
		}
		jobType, err := requireArg(args, "job_type")
		if err != nil {
			return nil, err
		}
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.ExecuteJob(ctx, app, jobType, jobName, mapArg(args, "parameters"))

	case "get_dimensions":
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.GetDimensions(ctx, app)

	case "get_members":
		dimension, err := requireArg(args, "dimension")
		if err != nil {
			return nil, err
		}
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.GetMembers(ctx, app, dimension)

	case "get_member":
		dimension, err := requireArg(args, "dimension")
		if err != nil {
			return nil, err
		}
		member, err := requireArg(args, "member")
		if err != nil {
			return nil, err
		}
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.GetMember(ctx, app, dimension, member)

	case "export_data_slice":
		cube, err := requireArg(args, "cube")
		if err != nil {
			return nil, err
		}
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.ExportDataSlice(ctx, app, cube, mapArg(args, "grid"))

	case "copy_data":
		if _, err := requireArg(args, "cube"); err != nil {
			return nil, err
		}
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.CopyData(ctx, app, args)

	case "clear_data":
		if _, err := requireArg(args, "cube"); err != nil {
			return nil, err
		}
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.ClearData(ctx, app, args)

	case "get_substitution_variables":
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.GetSubstitutionVariables(ctx, app)

	case "set_substitution_variable":
		name, err := requireArg(args, "name")
		if err != nil {
			return nil, err
		}
		value, err := requireArg(args, "value")
		if err != nil {
			return nil, err
		}
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.SetSubstitutionVariable(ctx, app, name, value, stringArg(args, "plan_type"))

	case "get_documents":
		app, err := ts.resolveApp(ctx)
		if err != nil {
			return nil, err
		}
		return ts.client.GetDocuments(ctx, app)

	case "get_snapshots":
		return ts.client.GetSnapshots(ctx)

	default:
		return nil, fmt.Errorf("unknown tool: %s", toolName)
	}
}
