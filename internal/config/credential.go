package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"transcript_sync/internal/domain"
)

// EnvVar is the environment variable consulted for a source's API key.
func EnvVar(source string) string {
	return strings.ToUpper(source) + "_API_KEY"
}

// ResolveCredential picks the API key for a source. The first non-empty of
// override, $SOURCE_API_KEY, api_key and the output of api_key_command wins.
func ResolveCredential(ctx context.Context, source, override string, src SourceConfig) (string, error) {
	if override != "" {
		return override, nil
	}
	if v := os.Getenv(EnvVar(source)); v != "" {
		return v, nil
	}
	if src.APIKey != "" {
		return src.APIKey, nil
	}
	if src.APIKeyCommand != "" {
		return runKeyCommand(ctx, source, src.APIKeyCommand)
	}
	return "", fmt.Errorf("%w: no API key for %s (set %s, sources.%s.api_key or sources.%s.api_key_command)",
		domain.ErrCredential, source, EnvVar(source), source, source)
}

func runKeyCommand(ctx context.Context, source, command string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s api_key_command failed: %v: %s",
			domain.ErrCredential, source, err, strings.TrimSpace(stderr.String()))
	}

	key := strings.TrimSpace(stdout.String())
	if key == "" {
		return "", fmt.Errorf("%w: %s api_key_command returned nothing", domain.ErrCredential, source)
	}
	return key, nil
}
