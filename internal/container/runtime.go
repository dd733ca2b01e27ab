// Package container runs a throwaway PostgreSQL for the postgres backend in
// Docker or Podman.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Runtime represents a container runtime (Docker or Podman)
type Runtime string

const (
	RuntimeDocker Runtime = "docker"
	RuntimePodman Runtime = "podman"
	RuntimeNone   Runtime = ""
)

// EnvRuntime forces one runtime instead of auto-detection.
const EnvRuntime = "CALLBOARD_CONTAINER_RUNTIME"

const (
	ContainerName   = "callboard-postgres"
	VolumeName      = "callboard-data"
	DefaultImage    = "postgres:16-alpine"
	DefaultPort     = 5434
	DefaultPassword = "callboard"
	DefaultDatabase = "callboard"
)

var ErrNoRuntime = errors.New("no container runtime found (install Docker or Podman)")

// Detect finds an available container runtime, preferring Docker.
func Detect(ctx context.Context) Runtime {
	switch Runtime(strings.ToLower(os.Getenv(EnvRuntime))) {
	case RuntimeDocker:
		if available(ctx, RuntimeDocker) {
			return RuntimeDocker
		}
	case RuntimePodman:
		if available(ctx, RuntimePodman) {
			return RuntimePodman
		}
	}

	for _, rt := range []Runtime{RuntimeDocker, RuntimePodman} {
		if available(ctx, rt) {
			return rt
		}
	}
	return RuntimeNone
}

func available(ctx context.Context, rt Runtime) bool {
	return exec.CommandContext(ctx, string(rt), "version").Run() == nil
}

// Postgres is the local callboard database container.
type Postgres struct {
	Runtime Runtime
	Name    string
	Volume  string
	Image   string
}

// New describes the default container for rt.
func New(rt Runtime) *Postgres {
	return &Postgres{
		Runtime: rt,
		Name:    ContainerName,
		Volume:  VolumeName,
		Image:   DefaultImage,
	}
}

func (p *Postgres) run(ctx context.Context, args ...string) ([]byte, error) {
	if p.Runtime == RuntimeNone {
		return nil, ErrNoRuntime
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, string(p.Runtime), args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s %s: %s", p.Runtime, args[0], msg)
		}
		return out, fmt.Errorf("%s %s: %w", p.Runtime, args[0], err)
	}
	return out, nil
}

// Version returns the runtime's server version.
func (p *Postgres) Version(ctx context.Context) (string, error) {
	out, err := p.run(ctx, "version", "--format", "{{.Server.Version}}")
	if err != nil {
		// podman has no .Server
		out, err = p.run(ctx, "version")
		if err != nil {
			return "", err
		}
		first, _, _ := strings.Cut(string(out), "\n")
		return strings.TrimSpace(first), nil
	}
	return strings.TrimSpace(string(out)), nil
}

// Exists reports whether the container exists, running or not.
func (p *Postgres) Exists(ctx context.Context) bool {
	_, err := p.run(ctx, "inspect", p.Name)
	return err == nil
}

// Running reports whether the container is running.
func (p *Postgres) Running(ctx context.Context) bool {
	out, err := p.run(ctx, "inspect", "-f", "{{.State.Running}}", p.Name)
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// Port returns the host port mapped to PostgreSQL.
func (p *Postgres) Port(ctx context.Context) (int, error) {
	out, err := p.run(ctx, "port", p.Name, "5432")
	if err != nil {
		return 0, err
	}
	return parsePort(string(out))
}

// parsePort reads "0.0.0.0:5434" or "[::]:5434", first line wins.
func parsePort(out string) (int, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	i := strings.LastIndex(line, ":")
	if i < 0 {
		return 0, fmt.Errorf("unexpected port format: %q", out)
	}
	port, err := strconv.Atoi(strings.TrimSpace(line[i+1:]))
	if err != nil {
		return 0, fmt.Errorf("unexpected port format: %q", out)
	}
	return port, nil
}

// Start creates the container on port, or starts it if it already exists.
func (p *Postgres) Start(ctx context.Context, port int) error {
	if p.Exists(ctx) {
		if p.Running(ctx) {
			return nil
		}
		_, err := p.run(ctx, "start", p.Name)
		return err
	}

	_, err := p.run(ctx, p.runArgs(port)...)
	return err
}

func (p *Postgres) runArgs(port int) []string {
	return []string{
		"run", "-d",
		"--name", p.Name,
		"-p", fmt.Sprintf("%d:5432", port),
		"-v", p.Volume + ":/var/lib/postgresql/data",
		"-e", "POSTGRES_PASSWORD=" + DefaultPassword,
		"-e", "POSTGRES_DB=" + DefaultDatabase,
		"--restart", "unless-stopped",
		p.Image,
	}
}

// Stop stops the container if it exists.
func (p *Postgres) Stop(ctx context.Context) error {
	if !p.Exists(ctx) {
		return nil
	}
	_, err := p.run(ctx, "stop", p.Name)
	return err
}

// Remove deletes the container, and its data volume when purge is set.
func (p *Postgres) Remove(ctx context.Context, purge bool) error {
	if p.Exists(ctx) {
		if err := p.Stop(ctx); err != nil {
			return err
		}
		if _, err := p.run(ctx, "rm", p.Name); err != nil {
			return err
		}
	}
	if purge && p.VolumeExists(ctx) {
		_, err := p.run(ctx, "volume", "rm", p.Volume)
		return err
	}
	return nil
}

// VolumeExists reports whether the data volume exists.
func (p *Postgres) VolumeExists(ctx context.Context) bool {
	_, err := p.run(ctx, "volume", "inspect", p.Volume)
	return err == nil
}

// Logs returns the last tail lines of container output, all when tail <= 0.
func (p *Postgres) Logs(ctx context.Context, tail int) (string, error) {
	if p.Runtime == RuntimeNone {
		return "", ErrNoRuntime
	}
	args := []string{"logs"}
	if tail > 0 {
		args = append(args, "--tail", strconv.Itoa(tail))
	}
	args = append(args, p.Name)

	cmd := exec.CommandContext(ctx, string(p.Runtime), args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// WaitReady polls pg_isready until the server accepts connections.
func (p *Postgres) WaitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		if _, err := p.run(ctx, "exec", p.Name, "pg_isready", "-U", "postgres"); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("PostgreSQL not ready after %s", timeout)
		case <-ticker.C:
		}
	}
}

// URL is the connection URL for the container's database.
func URL(port int) string {
	return fmt.Sprintf("postgres://postgres:%s@localhost:%d/%s?sslmode=disable",
		DefaultPassword, port, DefaultDatabase)
}

// PortAvailable reports whether nothing listens on the local port.
func PortAvailable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// FindAvailablePort returns the first free port from start on, or start
// when the next 100 are all taken.
func FindAvailablePort(start int) int {
	for port := start; port < start+100; port++ {
		if PortAvailable(port) {
			return port
		}
	}
	return start
}
