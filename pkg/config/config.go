package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"govfed/pkg/types"
)

// FederationConfig holds one organization's federation settings.
type FederationConfig struct {
	OrgID                string   `json:"org_id"`
	Name                 string   `json:"name"`
	Domain               string   `json:"domain"`
	Role                 string   `json:"role"`
	SigningKey           string   `json:"signing_key"` // hex-encoded MAC secret
	FederationEndpoint   string   `json:"federation_endpoint"`
	ComplianceFrameworks []string `json:"compliance_frameworks"`

	ChallengeWindowSeconds int `json:"challenge_window_seconds,omitempty"`
	RequestTimeoutSeconds  int `json:"request_timeout_seconds,omitempty"`
	AuditBatchSize         int `json:"audit_batch_size,omitempty"`
	AuditLeafWidth         int `json:"audit_leaf_width,omitempty"`
}

// LoadConfig reads a federation configuration from a JSON file.
func LoadConfig(path string) (*FederationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FederationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv builds a federation configuration from GOVFED_* environment
// variables.
func LoadFromEnv() *FederationConfig {
	return &FederationConfig{
		OrgID:                  getEnv("GOVFED_ORG_ID", ""),
		Name:                   getEnv("GOVFED_ORG_NAME", ""),
		Domain:                 getEnv("GOVFED_DOMAIN", ""),
		Role:                   getEnv("GOVFED_ROLE", string(types.RoleMember)),
		SigningKey:             getEnv("GOVFED_SIGNING_KEY", ""),
		FederationEndpoint:     getEnv("GOVFED_FEDERATION_ENDPOINT", ""),
		ChallengeWindowSeconds: getEnvInt("GOVFED_CHALLENGE_WINDOW_SECONDS", 0),
		RequestTimeoutSeconds:  getEnvInt("GOVFED_REQUEST_TIMEOUT_SECONDS", 0),
		AuditBatchSize:         getEnvInt("GOVFED_AUDIT_BATCH_SIZE", 0),
		AuditLeafWidth:         getEnvInt("GOVFED_AUDIT_LEAF_WIDTH", 0),
	}
}

// Validate checks that the configuration names a usable local organization.
func (c *FederationConfig) Validate() error {
	if c.OrgID == "" {
		return fmt.Errorf("org_id is required")
	}
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.SigningKey == "" {
		return fmt.Errorf("signing_key is required")
	}
	if _, err := hex.DecodeString(c.SigningKey); err != nil {
		return fmt.Errorf("signing_key must be hex-encoded: %w", err)
	}
	switch types.OrgRole(c.Role) {
	case types.RoleLeader, types.RoleMember, types.RoleObserver, types.RoleBridge:
	default:
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

// Identity constructs the local organization identity from the
// configuration.
func (c *FederationConfig) Identity() (*types.OrganizationIdentity, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	key, err := hex.DecodeString(c.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signing key: %w", err)
	}

	frameworks := make([]types.Framework, len(c.ComplianceFrameworks))
	for i, f := range c.ComplianceFrameworks {
		frameworks[i] = types.Framework(f)
	}

	return &types.OrganizationIdentity{
		OrgID:                c.OrgID,
		Name:                 c.Name,
		Domain:               c.Domain,
		SigningKey:           key,
		FederationEndpoint:   c.FederationEndpoint,
		Role:                 types.OrgRole(c.Role),
		TrustLevel:           types.TrustNone,
		ComplianceFrameworks: frameworks,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
