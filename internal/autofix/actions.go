package autofix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/remedian/remedian/internal/database"
)

// ServiceClient holds the connection details for one external service
// API used by the action runners
type ServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// postJSON sends an authenticated POST and decodes the JSON response
// into out (which may be nil). Non-2xx responses are errors.
func (c *ServiceClient) postJSON(ctx context.Context, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("external service returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode service response: %w", err)
		}
	}
	return nil
}

// RetryWorkflowRunner re-runs a failed CI workflow
type RetryWorkflowRunner struct {
	CI *ServiceClient
}

// Action returns the action this runner performs
func (r *RetryWorkflowRunner) Action() database.AutoFixAction {
	return database.AutoFixActionRetryWorkflow
}

// Run triggers a CI re-run for the alert's repository
func (r *RetryWorkflowRunner) Run(ctx context.Context, alert *database.Alert) (*Result, error) {
	body := map[string]string{
		"repository": alert.Repository,
		"branch":     alert.Branch,
		"commit":     alert.Commit,
	}
	if err := r.CI.postJSON(ctx, "/workflows/rerun", body, nil); err != nil {
		return nil, err
	}
	return &Result{
		Details: fmt.Sprintf("Re-ran workflow for %s@%s", alert.Repository, alert.Branch),
	}, nil
}

// RedeployRunner triggers a fresh deployment
type RedeployRunner struct {
	Deploy *ServiceClient
}

// Action returns the action this runner performs
func (r *RedeployRunner) Action() database.AutoFixAction {
	return database.AutoFixActionRedeploy
}

// Run triggers a redeploy of the alert's repository and environment
func (r *RedeployRunner) Run(ctx context.Context, alert *database.Alert) (*Result, error) {
	body := map[string]string{
		"repository":  alert.Repository,
		"branch":      alert.Branch,
		"environment": alert.Environment,
	}
	if err := r.Deploy.postJSON(ctx, "/deployments/retrigger", body, nil); err != nil {
		return nil, err
	}
	return &Result{
		Details: fmt.Sprintf("Triggered redeploy of %s to %s", alert.Repository, alert.Environment),
	}, nil
}

// LintFixRunner applies automated lint fixes and opens a pull request
type LintFixRunner struct {
	Lint *ServiceClient
}

// Action returns the action this runner performs
func (r *LintFixRunner) Action() database.AutoFixAction {
	return database.AutoFixActionLintFix
}

// Run requests an automated lint-fix PR for the alert's repository
func (r *LintFixRunner) Run(ctx context.Context, alert *database.Alert) (*Result, error) {
	body := map[string]string{
		"repository": alert.Repository,
		"branch":     alert.Branch,
		"commit":     alert.Commit,
	}
	var resp struct {
		PullRequestURL string `json:"pull_request_url"`
	}
	if err := r.Lint.postJSON(ctx, "/lint/fix", body, &resp); err != nil {
		return nil, err
	}
	return &Result{
		Details: fmt.Sprintf("Opened automated lint-fix pull request for %s", alert.Repository),
		PRURL:   resp.PullRequestURL,
	}, nil
}
