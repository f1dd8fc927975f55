// Package supervisor owns the auxiliary process: it is spawned once at
// startup, its output is logged, and it is terminated at shutdown. A failed
// spawn leaves the service running in degraded mode.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/aussiebroadwan/dcm/internal/dcm/metrics"
	"github.com/aussiebroadwan/dcm/pkg/idx"
	"github.com/shirou/gopsutil/v3/process"
)

type State string

const (
	StateDisabled State = "disabled" // no command configured
	StateRunning  State = "running"
	StateExited   State = "exited"
	StateDegraded State = "degraded" // spawn failed
)

var ErrAlreadyStarted = errors.New("supervisor: already started")

const waitDelay = 2 * time.Second

// Status is a point-in-time view of the process. Resource figures are only
// filled while it is running.
type Status struct {
	State      State     `json:"state"`
	RunID      string    `json:"run_id,omitempty"`
	PID        int       `json:"pid,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Error      string    `json:"error,omitempty"`
	RSSBytes   uint64    `json:"rss_bytes,omitempty"`
	CPUPercent float64   `json:"cpu_percent,omitempty"`
}

type Process struct {
	Command string
	Args    []string
	Dir     string

	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional

	mu        sync.Mutex
	started   bool
	cmd       *exec.Cmd
	state     State
	runID     idx.ID
	startedAt time.Time
	exitCode  *int
	err       error
	done      chan struct{}
}

// Start spawns the command. With no command configured it only records the
// disabled state. A spawn error is returned and the state becomes degraded;
// callers are expected to log it and carry on.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true

	if p.Command == "" {
		p.state = StateDisabled
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.runID = idx.New()
	log := p.logger().With("run_id", p.runID.String(), "command", p.Command)

	cmd := exec.Command(p.Command, p.Args...) // #nosec G204 - operator-configured command
	cmd.Dir = p.Dir
	// Grandchildren may keep the output pipes open after the child exits.
	cmd.WaitDelay = waitDelay

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return p.degrade(log, err)
	}

	p.cmd = cmd
	p.state = StateRunning
	p.startedAt = time.Now().UTC()
	p.done = make(chan struct{})
	p.Metrics.SetAuxRunning(true)

	log.Info("aux process started", "pid", cmd.Process.Pid)

	go pump(stdoutR, log, slog.LevelInfo, "stdout")
	go pump(stderrR, log, slog.LevelWarn, "stderr")
	go p.wait(log, stdoutW, stderrW)
	return nil
}

func (p *Process) degrade(log *slog.Logger, err error) error {
	p.state = StateDegraded
	p.err = err
	p.Metrics.AuxSpawnFailed()
	log.Error("aux process failed to start", "error", err)
	return fmt.Errorf("spawn %s: %w", p.Command, err)
}

// pump logs one output stream line by line until it closes.
func pump(r io.Reader, log *slog.Logger, level slog.Level, stream string) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		log.Log(context.Background(), level, "aux output", "stream", stream, "line", sc.Text())
	}
	// Keep draining after an over-long line so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// wait reaps the process and closes the log pipes.
func (p *Process) wait(log *slog.Logger, pipes ...io.Closer) {
	err := p.cmd.Wait()
	for _, c := range pipes {
		_ = c.Close()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	code := p.cmd.ProcessState.ExitCode()
	p.exitCode = &code
	p.state = StateExited
	if err != nil {
		p.err = err
	}
	p.Metrics.SetAuxRunning(false)
	close(p.done)

	log.Info("aux process exited", "exit_code", code)
}

// Stop asks the process to terminate and waits for it. If ctx expires first
// the process is killed.
func (p *Process) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateRunning {
		p.mu.Unlock()
		return nil
	}
	proc, done := p.cmd.Process, p.done
	p.mu.Unlock()

	// Windows has no SIGTERM; fall back to Kill there.
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		_ = proc.Kill()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger().Warn("aux process did not exit in time, killing")
		_ = proc.Kill()
		<-done
		return ctx.Err()
	}
}

// Done is closed when a started process has exited. It is nil if the process
// never ran.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Process) Status() Status {
	p.mu.Lock()
	st := Status{
		State:     p.state,
		RunID:     p.runID.String(),
		StartedAt: p.startedAt,
		ExitCode:  p.exitCode,
	}
	if st.State == "" {
		st.State = StateDisabled
	}
	if p.err != nil {
		st.Error = p.err.Error()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		st.PID = p.cmd.Process.Pid
	}
	p.mu.Unlock()

	if st.State == StateRunning {
		st.RSSBytes, st.CPUPercent = sample(st.PID)
	}
	return st
}

// sample reads resource usage for pid. Failures leave the figures at zero;
// the process may have exited between the state check and the read.
func sample(pid int) (uint64, float64) {
	proc, err := process.NewProcess(int32(pid)) // #nosec G115 - pids fit in int32
	if err != nil {
		return 0, 0
	}

	var rss uint64
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		rss = mem.RSS
	}
	cpu, _ := proc.CPUPercent()
	return rss, cpu
}

func (p *Process) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
