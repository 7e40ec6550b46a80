package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"govfed/pkg/types"
)

// DefaultRequestTimeout bounds each individual federation round trip.
const DefaultRequestTimeout = 30 * time.Second

// HTTPClient talks to remote federation endpoints over HTTPS.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewHTTPClient creates a federation HTTP client. A zero timeout selects
// DefaultRequestTimeout.
func NewHTTPClient(timeout time.Duration, logger *zap.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		logger:  logger,
	}
}

// FetchIdentity retrieves the identity document published at the
// organization's well-known path.
func (c *HTTPClient) FetchIdentity(ctx context.Context, domain string) (*types.OrganizationIdentity, error) {
	u := identityURL(domain)

	var identity types.OrganizationIdentity
	if err := c.getJSON(ctx, u, &identity); err != nil {
		return nil, fmt.Errorf("failed to fetch identity for %s: %w", domain, err)
	}
	if identity.OrgID == "" || identity.Domain == "" {
		return nil, fmt.Errorf("identity document from %s is missing org_id or domain", domain)
	}
	return &identity, nil
}

// FetchAttestations lists the organization's compliance attestations.
func (c *HTTPClient) FetchAttestations(ctx context.Context, endpoint, orgID string) ([]*types.ComplianceAttestation, error) {
	u := fmt.Sprintf("%s/federation/attestations?org_id=%s", strings.TrimSuffix(endpoint, "/"), url.QueryEscape(orgID))

	var attestations []*types.ComplianceAttestation
	if err := c.getJSON(ctx, u, &attestations); err != nil {
		return nil, fmt.Errorf("failed to fetch attestations for %s: %w", orgID, err)
	}
	return attestations, nil
}

// PushPolicy transmits one policy record to a remote endpoint.
func (c *HTTPClient) PushPolicy(ctx context.Context, endpoint string, policy *types.FederatedPolicy) error {
	u := fmt.Sprintf("%s/federation/policies", strings.TrimSuffix(endpoint, "/"))

	body, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy %s: %w", policy.PolicyID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push to %s rejected with status %d", endpoint, resp.StatusCode)
	}
	return nil
}

// PullPolicies requests policies from a remote endpoint, optionally only
// those newer than sinceVersion.
func (c *HTTPClient) PullPolicies(ctx context.Context, endpoint, sinceVersion string) (*PullResponse, error) {
	u := fmt.Sprintf("%s/federation/policies", strings.TrimSuffix(endpoint, "/"))
	if sinceVersion != "" {
		u += "?since_version=" + url.QueryEscape(sinceVersion)
	}

	var pulled PullResponse
	if err := c.getJSON(ctx, u, &pulled); err != nil {
		return nil, fmt.Errorf("pull from %s failed: %w", endpoint, err)
	}
	return &pulled, nil
}

// getJSON performs a bounded GET and decodes the JSON response into out.
func (c *HTTPClient) getJSON(ctx context.Context, u string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// identityURL derives the well-known identity document URL for a domain.
func identityURL(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return strings.TrimSuffix(domain, "/") + WellKnownIdentityPath
	}
	return "https://" + domain + WellKnownIdentityPath
}
