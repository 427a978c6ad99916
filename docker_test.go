package perfreview_test

import (
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("%s should exist: %v", name, err)
	}
	return string(data)
}

func TestDockerfile(t *testing.T) {
	content := readFile(t, "Dockerfile")

	tests := []struct {
		name string
		want string
	}{
		{"builder stage", "FROM golang:"},
		{"binary name", "-o /out/perfreview ./cmd/perfreview"},
		{"entrypoint", "ENTRYPOINT"},
		{"docker healthcheck uses subcommand", `"healthcheck"`},
	}
	for _, tt := range tests {
		if !strings.Contains(content, tt.want) {
			t.Errorf("%s: Dockerfile should contain %q", tt.name, tt.want)
		}
	}

	// 最終ステージは軽量イメージであること
	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "gcr.io/distroless") {
		t.Errorf("final stage should be distroless, got: %s", lastFrom)
	}
}

func TestDockerCompose(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	tests := []struct {
		name string
		want string
	}{
		{"web service", "api:"},
		{"cleanup worker", "worker:"},
		{"worker subcommand", `command: ["worker"]`},
		{"redis session store", "redis:7"},
		{"postgres session store", "postgres:"},
		{"migrate subcommand", `command: ["migrate"]`},
		{"networks", "networks:"},
		{"internal network", "internal: true"},
		{"external network for backend egress", "external:"},
	}
	for _, tt := range tests {
		if !strings.Contains(content, tt.want) {
			t.Errorf("%s: docker-compose.yml should contain %q", tt.name, tt.want)
		}
	}
}
