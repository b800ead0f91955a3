package docker

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// ContainerInfo holds relevant container information
type ContainerInfo struct {
	ID      string
	Name    string
	Image   string
	Labels  map[string]string
	Env     map[string]string
	Running bool
}

// Client wraps the Docker API client
type Client struct {
	cli *client.Client
}

// NewClient creates a new Docker client
func NewClient(host string) (*Client, error) {
	opts := []client.Opt{
		client.WithAPIVersionNegotiation(),
	}

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}

	// Verify connection
	_, err = cli.Ping(context.Background())
	if err != nil {
		return nil, err
	}

	return &Client{cli: cli}, nil
}

// Close closes the Docker client
func (c *Client) Close() error {
	return c.cli.Close()
}

// ListContainers returns the running containers created from ancestorImage
// (or an image derived from it), sorted by name. An empty ancestorImage
// returns every running container.
func (c *Client) ListContainers(ctx context.Context, ancestorImage string) ([]ContainerInfo, error) {
	filterArgs := filters.NewArgs()
	if ancestorImage != "" {
		filterArgs.Add("ancestor", ancestorImage)
	}

	containers, err := c.cli.ContainerList(ctx, container.ListOptions{
		All:     false, // Only running containers
		Filters: filterArgs,
	})
	if err != nil {
		return nil, err
	}

	var result []ContainerInfo
	for _, ctr := range containers {
		info, err := c.GetContainer(ctx, ctr.ID)
		if err != nil {
			continue // Skip containers we can't inspect
		}
		result = append(result, *info)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// GetContainer returns detailed information about a container by ID or name
func (c *Client) GetContainer(ctx context.Context, containerID string) (*ContainerInfo, error) {
	inspect, err := c.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, err
	}

	// Parse environment variables into a map
	env := make(map[string]string)
	var labels map[string]string
	var image string
	if inspect.Config != nil {
		for _, e := range inspect.Config.Env {
			if k, v, ok := strings.Cut(e, "="); ok {
				env[k] = v
			}
		}
		labels = inspect.Config.Labels
		image = inspect.Config.Image
	}

	running := inspect.State != nil && inspect.State.Running

	return &ContainerInfo{
		ID:      inspect.ID,
		Name:    strings.TrimPrefix(inspect.Name, "/"),
		Image:   image,
		Labels:  labels,
		Env:     env,
		Running: running,
	}, nil
}

// ExecResult contains the result of a container exec
type ExecResult struct {
	ExitCode int
	Output   string
}

// Exec runs a command in a container and pipes stdin to it.
// env entries use the KEY=value form.
func (c *Client) Exec(ctx context.Context, containerID string, cmd, env []string, stdin io.Reader) (*ExecResult, error) {
	execConfig := container.ExecOptions{
		Cmd:          cmd,
		Env:          env,
		AttachStdin:  stdin != nil,
		AttachStdout: true,
		AttachStderr: true,
	}

	execID, err := c.cli.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return nil, err
	}

	resp, err := c.cli.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	// If we have stdin data, write it
	if stdin != nil {
		go func() {
			_, _ = io.Copy(resp.Conn, stdin)
			_ = resp.CloseWrite()
		}()
	}

	// Read output - demultiplex Docker stream
	var stdout, stderr bytes.Buffer
	_, err = stdcopy.StdCopy(&stdout, &stderr, resp.Reader)
	if err != nil {
		return nil, err
	}

	inspectResp, err := c.cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return nil, err
	}

	// Combine stdout and stderr for output
	output := stdout.String()
	if stderr.Len() > 0 {
		output += stderr.String()
	}

	return &ExecResult{
		ExitCode: inspectResp.ExitCode,
		Output:   output,
	}, nil
}

// ExecWithOutput runs a command in a container and streams its stdout to w.
// The returned result carries the exit code and the captured stderr.
func (c *Client) ExecWithOutput(ctx context.Context, containerID string, cmd, env []string, w io.Writer) (*ExecResult, error) {
	execConfig := container.ExecOptions{
		Cmd:          cmd,
		Env:          env,
		AttachStdout: true,
		AttachStderr: true,
	}

	execID, err := c.cli.ContainerExecCreate(ctx, containerID, execConfig)
	if err != nil {
		return nil, err
	}

	resp, err := c.cli.ContainerExecAttach(ctx, execID.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, err
	}
	defer resp.Close()

	// Demultiplex Docker stream - stdout to the writer, stderr kept for errors
	var stderr bytes.Buffer
	_, err = stdcopy.StdCopy(w, &stderr, resp.Reader)
	if err != nil {
		return nil, err
	}

	inspectResp, err := c.cli.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return nil, err
	}

	return &ExecResult{
		ExitCode: inspectResp.ExitCode,
		Output:   stderr.String(),
	}, nil
}
