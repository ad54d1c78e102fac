package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// ClientOptionsFromEnv builds the shared option set for GCP clients.
// GOOGLE_APPLICATION_CREDENTIALS is honored implicitly by the SDK; an
// explicit key file path wins when set.
func ClientOptionsFromEnv() []option.ClientOption {
	opts := []option.ClientOption{}
	if keyFile := strings.TrimSpace(os.Getenv("GCP_SERVICE_ACCOUNT_KEY_FILE")); keyFile != "" {
		opts = append(opts, option.WithCredentialsFile(keyFile))
	}
	if endpoint := strings.TrimSpace(os.Getenv("GCS_EMULATOR_ENDPOINT")); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	return opts
}
