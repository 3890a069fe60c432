package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
)

var (
	llmProviders    = []string{"gemini", "openai"}
	storageBackends = []string{"local", "minio"}
	ledgerBackends  = []string{"file", "sqlite", "postgres"}
	policyNames     = []string{"propagate", "degrade"}
)

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	// Validate server configuration
	if c.Server.Addr == "" {
		return errors.New("server address cannot be empty")
	}

	// Validate address format and port
	if _, err := net.ResolveTCPAddr("tcp", c.Server.Addr); err != nil {
		return fmt.Errorf("invalid server address: %v", err)
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server rate_limit cannot be negative")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("server max_upload_bytes must be positive")
	}

	if c.CORS.FrontendURLRegex != "" {
		if _, err := regexp.Compile(c.CORS.FrontendURLRegex); err != nil {
			return fmt.Errorf("invalid cors frontend_url_regex: %v", err)
		}
	}

	if !oneOf(c.LLM.Provider, llmProviders) {
		return fmt.Errorf("unknown llm provider: %s (supported: %s)", c.LLM.Provider, strings.Join(llmProviders, ", "))
	}

	if c.Analysis.AnalysisChars <= 0 || c.Analysis.EmailChars <= 0 || c.Analysis.QuestionChars <= 0 {
		return errors.New("analysis character limits must be positive")
	}
	for endpoint, policy := range c.Analysis.Policies {
		if !oneOf(policy, policyNames) {
			return fmt.Errorf("invalid error policy %q for %s", policy, endpoint)
		}
	}

	// Validate storage configuration
	if !oneOf(c.Storage.Backend, storageBackends) {
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}
	if c.Storage.DataDir == "" {
		return errors.New("storage data_dir cannot be empty")
	}
	if len(c.Storage.AllowedExtensions) == 0 {
		return errors.New("storage allowed_extensions cannot be empty")
	}
	if c.Storage.Backend == "local" && c.Storage.UploadsDir == "" {
		return errors.New("storage uploads_dir cannot be empty for the local backend")
	}
	if c.Storage.Backend == "minio" {
		m := c.Storage.MinIO
		if m.Endpoint == "" {
			return errors.New("minio endpoint cannot be empty when minio is enabled")
		}
		if m.AccessKey == "" || m.SecretKey == "" {
			return errors.New("minio credentials cannot be empty when minio is enabled")
		}
		if !isValidBucketName(m.Bucket) {
			return fmt.Errorf("invalid minio bucket name: %s", m.Bucket)
		}
	}

	if !oneOf(c.Ledger.Backend, ledgerBackends) {
		return fmt.Errorf("unknown ledger backend: %s", c.Ledger.Backend)
	}
	if c.Ledger.Backend == "postgres" && c.Ledger.DSN == "" {
		return errors.New("ledger dsn cannot be empty for the postgres backend")
	}

	for product, credits := range c.Billing.Plans {
		if credits < 0 {
			return fmt.Errorf("billing plan %s grants negative credits", product)
		}
	}

	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// isValidBucketName checks if a bucket name is valid according to MinIO/S3 rules
func isValidBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	if !regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`).MatchString(name) {
		return false
	}
	return true
}
