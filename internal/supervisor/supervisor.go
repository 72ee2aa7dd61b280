package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omniquery/omniquery-backend/internal/platform/envutil"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

// ServerSpec describes one MCP tool server sidecar. Command is a shell-less
// argv string; an empty command disables the entry.
type ServerSpec struct {
	Name    string
	Command string
	Port    int
}

type ServerStatus struct {
	Name          string  `json:"name"`
	Port          int     `json:"port"`
	PID           int     `json:"pid"`
	Running       bool    `json:"running"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// SpecsFromEnv builds the fixed sidecar list. Commands come from
// MCP_{NAME}_COMMAND; unset entries are skipped at start with a log line so
// the backend still boots without the sidecars installed.
func SpecsFromEnv() []ServerSpec {
	return []ServerSpec{
		{Name: "audio", Command: envutil.String("MCP_AUDIO_COMMAND", ""), Port: envutil.Int("MCP_AUDIO_PORT", 8001)},
		{Name: "video", Command: envutil.String("MCP_VIDEO_COMMAND", ""), Port: envutil.Int("MCP_VIDEO_PORT", 8002)},
		{Name: "image", Command: envutil.String("MCP_IMAGE_COMMAND", ""), Port: envutil.Int("MCP_IMAGE_PORT", 8003)},
		{Name: "docs", Command: envutil.String("MCP_DOCS_COMMAND", ""), Port: envutil.Int("MCP_DOCS_PORT", 8004)},
	}
}

type proc struct {
	spec      ServerSpec
	cmd       *exec.Cmd
	startedAt time.Time
	stopOnce  sync.Once

	mu     sync.Mutex
	exited bool
}

func (p *proc) markExited() {
	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()
}

func (p *proc) running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil && p.cmd.Process != nil && !p.exited
}

// Supervisor owns the MCP tool server subprocesses for the lifetime of the
// backend process.
type Supervisor struct {
	mu    sync.Mutex
	specs []ServerSpec
	procs []*proc
	log   *logger.Logger
}

func New(specs []ServerSpec, baseLog *logger.Logger) *Supervisor {
	return &Supervisor{
		specs: specs,
		log:   baseLog.With("service", "MCPSupervisor"),
	}
}

// StartAll launches every configured sidecar concurrently. A sidecar that
// fails to spawn fails the boot; sidecars with no command are skipped.
func (s *Supervisor) StartAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.procs) > 0 {
		return fmt.Errorf("mcp servers already started")
	}

	var (
		g       errgroup.Group
		procsMu sync.Mutex
		procs   []*proc
	)
	for _, spec := range s.specs {
		spec := spec
		if strings.TrimSpace(spec.Command) == "" {
			s.log.Info("MCP server not configured, skipping", "name", spec.Name)
			continue
		}
		g.Go(func() error {
			p, err := s.spawn(ctx, spec)
			if err != nil {
				return fmt.Errorf("start mcp server %s: %w", spec.Name, err)
			}
			procsMu.Lock()
			procs = append(procs, p)
			procsMu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	s.procs = procs
	if err != nil {
		return err
	}
	s.log.Info("MCP servers started", "count", len(procs))
	return nil
}

func (s *Supervisor) spawn(ctx context.Context, spec ServerSpec) (*proc, error) {
	argv := strings.Fields(spec.Command)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), "PORT="+strconv.Itoa(spec.Port))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p := &proc{spec: spec, cmd: cmd, startedAt: time.Now()}
	go func() {
		_ = cmd.Wait()
		p.markExited()
		s.log.Warn("MCP server exited", "name", spec.Name, "pid", cmd.Process.Pid)
	}()

	s.log.Info("MCP server started", "name", spec.Name, "pid", cmd.Process.Pid, "port", spec.Port)
	return p, nil
}

// StopAll sends SIGTERM, waits up to 5s, then SIGKILLs. Each process is
// stopped at most once no matter how many callers race here.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	procs := s.procs
	s.procs = nil
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range procs {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.stopOnce.Do(func() { s.stop(p) })
		}()
	}
	wg.Wait()
}

func (s *Supervisor) stop(p *proc) {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	if !p.running() {
		return
	}

	pid := p.cmd.Process.Pid
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.log.Warn("SIGTERM failed", "name", p.spec.Name, "pid", pid, "error", err)
	}

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-deadline:
			s.log.Warn("MCP server did not exit, killing", "name", p.spec.Name, "pid", pid)
			_ = p.cmd.Process.Kill()
			return
		case <-tick.C:
			if !p.running() {
				s.log.Info("MCP server stopped", "name", p.spec.Name, "pid", pid)
				return
			}
		}
	}
}

// Restart stops every sidecar and starts the configured set again.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.StopAll()
	return s.StartAll(ctx)
}

func (s *Supervisor) Status() []ServerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ServerStatus, 0, len(s.specs))
	for _, spec := range s.specs {
		status := ServerStatus{Name: spec.Name, Port: spec.Port}
		for _, p := range s.procs {
			if p.spec.Name != spec.Name {
				continue
			}
			if p.cmd != nil && p.cmd.Process != nil {
				status.PID = p.cmd.Process.Pid
			}
			status.Running = p.running()
			if status.Running {
				status.UptimeSeconds = time.Since(p.startedAt).Seconds()
			}
		}
		out = append(out, status)
	}
	return out
}
