/*
Package catalog holds the registry of planning tools the agent can invoke.

Each tool carries a name, a human-readable description, and a JSON input
schema. The catalog is static; the searchable index over it lives in this
package too and powers candidate discovery for recommendations.
*/
package catalog

// Tool describes one invocable planning operation.
type Tool struct {
	// Name is the unique tool identifier.
	Name string `json:"name"`

	// Description explains what the tool does, used for search and for
	// protocol tool listings.
	Description string `json:"description"`

	// InputSchema is the JSON schema for the tool's arguments.
	InputSchema map[string]any `json:"inputSchema"`
}

// objectSchema builds a JSON schema for an object with the given properties.
func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// tools is the full planning tool registry.
var tools = []Tool{
	{
		Name:        "get_application_info",
		Description: "Get planning application details: name, type, and available cubes",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
	{
		Name:        "get_rest_api_version",
		Description: "Get the planning REST API version information",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
	{
		Name:        "list_jobs",
		Description: "List recent jobs and their execution status",
		InputSchema: objectSchema(nil, map[string]any{
			"limit": intProp("Maximum number of jobs to return"),
		}),
	},
	{
		Name:        "get_job_status",
		Description: "Get the status of a specific job by id",
		InputSchema: objectSchema([]string{"job_id"}, map[string]any{
			"job_id": stringProp("Job identifier"),
		}),
	},
	{
		Name:        "execute_job",
		Description: "Execute a business rule or batch job by name and type",
		InputSchema: objectSchema([]string{"job_name", "job_type"}, map[string]any{
			"job_name": stringProp("Name of the job to run"),
			"job_type": stringProp("Job type, e.g. RULES or CUBE_REFRESH"),
		}),
	},
	{
		Name:        "get_dimensions",
		Description: "List the dimensions of a planning cube",
		InputSchema: objectSchema(nil, map[string]any{
			"cube": stringProp("Cube name, defaults to the first cube"),
		}),
	},
	{
		Name:        "get_members",
		Description: "List members of a dimension hierarchy",
		InputSchema: objectSchema([]string{"dimension"}, map[string]any{
			"dimension": stringProp("Dimension name"),
		}),
	},
	{
		Name:        "get_member",
		Description: "Get details for a single dimension member",
		InputSchema: objectSchema([]string{"dimension", "member"}, map[string]any{
			"dimension": stringProp("Dimension name"),
			"member":    stringProp("Member name"),
		}),
	},
	{
		Name:        "export_data_slice",
		Description: "Export a data slice from a planning cube using a grid definition",
		InputSchema: objectSchema([]string{"cube"}, map[string]any{
			"cube": stringProp("Cube to export from"),
			"grid": map[string]any{"type": "object", "description": "Grid definition with POV, rows and columns"},
		}),
	},
	{
		Name:        "copy_data",
		Description: "Copy data between intersections of a planning cube",
		InputSchema: objectSchema([]string{"cube"}, map[string]any{
			"cube":   stringProp("Cube to copy within"),
			"source": stringProp("Source slice definition"),
			"target": stringProp("Target slice definition"),
		}),
	},
	{
		Name:        "clear_data",
		Description: "Clear data in a region of a planning cube",
		InputSchema: objectSchema([]string{"cube"}, map[string]any{
			"cube":   stringProp("Cube to clear"),
			"region": stringProp("Region definition to clear"),
		}),
	},
	{
		Name:        "get_substitution_variables",
		Description: "List substitution variables and their current values",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
	{
		Name:        "set_substitution_variable",
		Description: "Set the value of a substitution variable",
		InputSchema: objectSchema([]string{"name", "value"}, map[string]any{
			"name":  stringProp("Variable name"),
			"value": stringProp("New value"),
		}),
	},
	{
		Name:        "get_documents",
		Description: "List library documents available in the application",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
	{
		Name:        "get_snapshots",
		Description: "List application snapshots available for download",
		InputSchema: objectSchema(nil, map[string]any{}),
	},
}

// All returns every tool definition.
func All() []Tool {
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out
}

// Names returns the tool names in registry order. This is the default
// candidate set for recommendations.
func Names() []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// Get returns a tool definition by name.
func Get(name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}
