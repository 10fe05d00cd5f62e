//go:build dockertest
// +build dockertest

package chatprovider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestOllama_RealContainer spins up a real ollama/ollama container and
// exercises the Ollama provider variant end-to-end. Build-tagged out of the
// default test run since it needs Docker; run with `-tags dockertest`.
func TestOllama_RealContainer(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "ollama/ollama:latest",
		ExposedPorts: []string{"11434/tcp"},
		WaitingFor:   wait.ForListeningPort("11434/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "11434")
	require.NoError(t, err)

	baseURL := fmt.Sprintf("http://%s:%s/v1", host, port.Port())
	p, err := NewOllama("llama3", baseURL, nil)
	require.NoError(t, err)

	// The freshly started container has no pulled model, so this call is
	// expected to surface a ServerError rather than hang; the point of the
	// test is exercising the real HTTP round trip against a live daemon.
	_, err = p.Chat(ctx, "hello")
	require.Error(t, err)
}
