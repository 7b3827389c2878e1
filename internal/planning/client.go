/*
Package planning provides the HTTP client for the Planning REST API and the
tool dispatch layer that exposes it to the agent.

In mock mode the client answers from canned fixtures so the agent can run
without a live Planning instance.
*/
package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultAPIVersion = "v3"

// Config holds the connection settings for a Planning instance.
type Config struct {
	// URL is the base Planning service URL, e.g. https://host.example.com.
	URL string

	// Username and Password are used for basic auth.
	Username string
	Password string

	// APIVersion selects the REST API version segment. Defaults to v3.
	APIVersion string

	// MockMode answers every call from canned fixtures instead of the API.
	MockMode bool
}

// Client talks to the Planning REST API for a single application.
type Client struct {
	config     Config
	httpClient *http.Client
	adminMode  bool
}

// NewClient builds a Planning client. A live (non-mock) client requires the
// URL and credentials to be set.
func NewClient(config Config) (*Client, error) {
	if config.APIVersion == "" {
		config.APIVersion = defaultAPIVersion
	}

	if !config.MockMode {
		if config.URL == "" || config.Username == "" || config.Password == "" {
			return nil, fmt.Errorf("missing planning credentials (URL, username, password) required for live connection")
		}
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// baseURL returns the applications root for the configured API version.
func (c *Client) baseURL() string {
	return fmt.Sprintf("%s/HyperionPlanning/rest/%s/applications", c.config.URL, c.config.APIVersion)
}

// adminQuery appends the admin mode parameter when the application reported
// admin mode during discovery.
func (c *Client) adminQuery(hasQuery bool) string {
	if !c.adminMode {
		return ""
	}
	if hasQuery {
		return "&adminMode=true"
	}
	return "?adminMode=true"
}

// do performs one API request and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, path string, payload any) (map[string]any, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(c.config.Username, c.config.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("planning request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("planning API returned HTTP %d: %s", resp.StatusCode, string(data))
	}

	var out map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return out, nil
}

// GetApplications lists the Planning applications visible to the user. It
// also records whether the first application is in admin mode, which changes
// how later calls are issued.
func (c *Client) GetApplications(ctx context.Context) (map[string]any, error) {
	if c.config.MockMode {
		return mockApplications(), nil
	}

	data, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return nil, err
	}

	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if first, ok := items[0].(map[string]any); ok {
			if admin, _ := first["adminMode"].(bool); admin {
				c.adminMode = true
			}
		}
	}
	return data, nil
}

// GetRESTAPIVersion reports the REST API version. Planning deployments vary
// in which version endpoint they expose, so several are tried in order.
func (c *Client) GetRESTAPIVersion(ctx context.Context) (map[string]any, error) {
	if c.config.MockMode {
		return map[string]any{"version": c.config.APIVersion, "apiVersion": "3.0"}, nil
	}

	for _, endpoint := range []string{"/rest/version", "/version", "/api/version"} {
		data, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err == nil {
			return data, nil
		}
	}

	return map[string]any{
		"version": c.config.APIVersion,
		"note":    "Version endpoint not available, using configured version",
	}, nil
}

// ListJobs lists recent jobs for the application. Errors degrade to an empty
// item list so job browsing never hard-fails the agent.
func (c *Client) ListJobs(ctx context.Context, appName string) (map[string]any, error) {
	if c.config.MockMode {
		return mockJobs(), nil
	}

	data, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/jobs%s", appName, c.adminQuery(false)), nil)
	if err != nil {
		return map[string]any{"items": []any{}, "error": err.Error()}, nil
	}
	return data, nil
}

// GetJobStatus fetches the status of a single job.
func (c *Client) GetJobStatus(ctx context.Context, appName, jobID string) (map[string]any, error) {
	if c.config.MockMode {
		return mockJobStatus(jobID), nil
	}

	return c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/jobs/%s%s", appName, jobID, c.adminQuery(false)), nil)
}

// ExecuteJob submits a job (business rule, refresh, export) for execution.
func (c *Client) ExecuteJob(ctx context.Context, appName, jobType, jobName string, parameters map[string]any) (map[string]any, error) {
	if c.config.MockMode {
		return mockJobResult(jobName, jobType), nil
	}

	if parameters == nil {
		parameters = map[string]any{}
	}
	payload := map[string]any{
		"jobType":    jobType,
		"jobName":    jobName,
		"parameters": parameters,
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/jobs%s", appName, c.adminQuery(false)), payload)
}

// GetDimensions lists the dimensions of the application. Deployments expose
// different metadata endpoints, so each is tried before falling back to the
// standard Planning dimension set.
func (c *Client) GetDimensions(ctx context.Context, appName string) (map[string]any, error) {
	if c.config.MockMode {
		return mockDimensions(), nil
	}

	endpoints := []string{
		fmt.Sprintf("/%s/dimensions%s", appName, c.adminQuery(false)),
		fmt.Sprintf("/%s/dimensions", appName),
		fmt.Sprintf("/%s/metadata/dimensions%s", appName, c.adminQuery(false)),
		fmt.Sprintf("/%s/metadata/dimensions", appName),
	}
	for _, endpoint := range endpoints {
		data, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err == nil {
			return data, nil
		}
	}

	return standardDimensions(), nil
}

// GetMembers lists members of a dimension.
func (c *Client) GetMembers(ctx context.Context, appName, dimension string) (map[string]any, error) {
	if c.config.MockMode {
		return mockMembers(), nil
	}

	endpoints := []string{
		fmt.Sprintf("/%s/dimensions/%s/members%s", appName, dimension, c.adminQuery(false)),
		fmt.Sprintf("/%s/dimensions/%s/members", appName, dimension),
		fmt.Sprintf("/%s/metadata/dimensions/%s/members%s", appName, dimension, c.adminQuery(false)),
		fmt.Sprintf("/%s/metadata/dimensions/%s/members", appName, dimension),
		fmt.Sprintf("/%s/dimensions/%s", appName, dimension),
	}
	for _, endpoint := range endpoints {
		data, err := c.do(ctx, http.MethodGet, endpoint, nil)
		if err == nil {
			return data, nil
		}
	}

	return nil, fmt.Errorf("could not retrieve members for dimension %s", dimension)
}

// GetMember fetches one member of a dimension by name.
func (c *Client) GetMember(ctx context.Context, appName, dimension, member string) (map[string]any, error) {
	if c.config.MockMode {
		return mockMember(), nil
	}

	endpoint := fmt.Sprintf("/%s/dimensions/%s/members/%s%s",
		appName, dimension, url.PathEscape(member), c.adminQuery(false))
	return c.do(ctx, http.MethodGet, endpoint, nil)
}

// ExportDataSlice exports a data slice from a cube using a grid definition.
func (c *Client) ExportDataSlice(ctx context.Context, appName, planType string, grid map[string]any) (map[string]any, error) {
	if c.config.MockMode {
		return mockDataSlice(), nil
	}

	payload := map[string]any{"gridDefinition": grid}
	endpoint := fmt.Sprintf("/%s/plantypes/%s/exportdataslice%s", appName, planType, c.adminQuery(false))
	return c.do(ctx, http.MethodPost, endpoint, payload)
}

// CopyData submits a data copy job.
func (c *Client) CopyData(ctx context.Context, appName string, parameters map[string]any) (map[string]any, error) {
	if c.config.MockMode {
		return map[string]any{"jobId": "401", "status": "Submitted", "jobType": "CopyData"}, nil
	}

	payload := map[string]any{"jobType": "COPYDATA"}
	for k, v := range parameters {
		payload[k] = v
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/jobs%s", appName, c.adminQuery(false)), payload)
}

// ClearData submits a data clear job.
func (c *Client) ClearData(ctx context.Context, appName string, parameters map[string]any) (map[string]any, error) {
	if c.config.MockMode {
		return map[string]any{"jobId": "402", "status": "Submitted", "jobType": "ClearData"}, nil
	}

	payload := map[string]any{"jobType": "CLEARDATA"}
	for k, v := range parameters {
		payload[k] = v
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/%s/jobs%s", appName, c.adminQuery(false)), payload)
}

// GetSubstitutionVariables lists substitution variables and values.
func (c *Client) GetSubstitutionVariables(ctx context.Context, appName string) (map[string]any, error) {
	if c.config.MockMode {
		return mockSubstitutionVariables(), nil
	}

	return c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/substitutionvariables%s", appName, c.adminQuery(false)), nil)
}

// SetSubstitutionVariable updates one substitution variable.
func (c *Client) SetSubstitutionVariable(ctx context.Context, appName, name, value, planType string) (map[string]any, error) {
	if c.config.MockMode {
		return map[string]any{"name": name, "value": value, "planType": planType, "status": "Updated"}, nil
	}

	payload := map[string]any{"value": value}
	if planType != "" {
		payload["planType"] = planType
	}
	endpoint := fmt.Sprintf("/%s/substitutionvariables/%s%s",
		appName, url.PathEscape(name), c.adminQuery(false))
	return c.do(ctx, http.MethodPut, endpoint, payload)
}

// GetDocuments lists library documents.
func (c *Client) GetDocuments(ctx context.Context, appName string) (map[string]any, error) {
	if c.config.MockMode {
		return mockDocuments(), nil
	}

	return c.do(ctx, http.MethodGet, fmt.Sprintf("/%s/documents%s", appName, c.adminQuery(false)), nil)
}

// GetSnapshots lists application snapshots. Snapshots live at the instance
// level rather than the application level; the endpoint is not wired yet so
// fixtures are returned.
// TODO: wire the instance-level migration API for live snapshot listings.
func (c *Client) GetSnapshots(ctx context.Context) (map[string]any, error) {
	return mockSnapshots(), nil
}
