package planning

// Canned fixtures served in mock mode. Each builder returns a fresh map so
// callers cannot mutate shared state.

func mockApplications() map[string]any {
	return map[string]any{
		"items": []any{
			map[string]any{
				"name":        "PlanApp",
				"type":        "Planning",
				"description": "Mock Planning Application for Testing",
			},
		},
	}
}

func mockJobs() map[string]any {
	return map[string]any{
		"items": []any{
			map[string]any{
				"jobId":     "101",
				"jobName":   "Export Metadata",
				"jobType":   "Export Metadata",
				"status":    "Completed",
				"startTime": "2023-10-27T10:00:00Z",
				"endTime":   "2023-10-27T10:05:00Z",
			},
			map[string]any{
				"jobId":     "102",
				"jobName":   "Business Rule",
				"jobType":   "Rules",
				"status":    "Running",
				"startTime": "2023-10-27T11:00:00Z",
			},
		},
	}
}

func mockJobStatus(jobID string) map[string]any {
	switch jobID {
	case "101":
		return map[string]any{
			"jobId":   "101",
			"jobName": "Export Metadata",
			"status":  "Success",
			"details": "Metadata exported successfully",
			"log":     "Export completed in 2s.",
		}
	case "102":
		return map[string]any{
			"jobId":   "102",
			"jobName": "Business Rule",
			"status":  "Running",
			"details": "Executing rule...",
		}
	default:
		return map[string]any{
			"jobId":   jobID,
			"status":  "Unknown",
			"details": "Mock job not found",
		}
	}
}

func mockJobResult(jobName, jobType string) map[string]any {
	return map[string]any{
		"jobId":   "103",
		"jobName": jobName,
		"jobType": jobType,
		"status":  "Submitted",
		"details": "Job submitted for processing.",
	}
}

func mockDimensions() map[string]any {
	return map[string]any{
		"items": []any{
			map[string]any{"name": "Account", "type": "Account"},
			map[string]any{"name": "Entity", "type": "Entity"},
			map[string]any{"name": "Period", "type": "Time"},
			map[string]any{"name": "Scenario", "type": "Scenario"},
			map[string]any{"name": "Version", "type": "Version"},
			map[string]any{"name": "Years", "type": "Time"},
			map[string]any{"name": "CostCenter", "type": "CostCenter"},
			map[string]any{"name": "Region", "type": "Region"},
		},
	}
}

// standardDimensions is the fallback when no metadata endpoint responds.
func standardDimensions() map[string]any {
	return map[string]any{
		"items": []any{
			map[string]any{"name": "Years", "type": "Time"},
			map[string]any{"name": "Period", "type": "Time"},
			map[string]any{"name": "Scenario", "type": "Scenario"},
			map[string]any{"name": "Version", "type": "Version"},
			map[string]any{"name": "Entity", "type": "Entity"},
			map[string]any{"name": "Account", "type": "Account"},
			map[string]any{"name": "CostCenter", "type": "CostCenter"},
			map[string]any{"name": "Region", "type": "Region"},
		},
		"note": "Standard Planning dimensions (endpoint not available)",
	}
}

func mockMembers() map[string]any {
	return map[string]any{
		"items": []any{
			map[string]any{"name": "NetIncome", "description": "Net Income", "parent": "Root"},
			map[string]any{"name": "Revenue", "description": "Total Revenue", "parent": "NetIncome"},
			map[string]any{"name": "Expenses", "description": "Total Expenses", "parent": "NetIncome"},
		},
	}
}

func mockMember() map[string]any {
	return map[string]any{
		"name":        "NetIncome",
		"description": "Net Income",
		"parent":      "Root",
		"children": []any{
			map[string]any{"name": "Revenue", "description": "Total Revenue"},
			map[string]any{"name": "Expenses", "description": "Total Expenses"},
		},
	}
}

func mockDataSlice() map[string]any {
	return map[string]any{
		"pov":     []any{"Year", "Scenario"},
		"columns": []any{map[string]any{"2024": []any{"Jan"}}},
		"rows": []any{
			map[string]any{"headers": []any{"Net Income"}, "data": []any{1000}},
		},
	}
}

func mockSubstitutionVariables() map[string]any {
	return map[string]any{
		"items": []any{
			map[string]any{"name": "CurrYear", "value": "FY24", "planType": "FinPlan"},
			map[string]any{"name": "CurrPeriod", "value": "Jan", "planType": "FinPlan"},
		},
	}
}

func mockDocuments() map[string]any {
	return map[string]any{
		"items": []any{
			map[string]any{
				"name":        "Budget Guidelines",
				"type":        "Document",
				"description": "Budget planning guidelines",
			},
		},
	}
}

func mockSnapshots() map[string]any {
	return map[string]any{
		"items": []any{
			map[string]any{
				"snapshotId":  "1",
				"name":        "Q1 Snapshot",
				"description": "Q1 2024 snapshot",
				"createdDate": "2024-03-31T00:00:00Z",
			},
		},
	}
}
