// Package statusbar tells a status bar process (i3blocks and friends) to
// re-read the status file after it changed.
package statusbar

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultRefreshInterval = 10 * time.Second

// ErrNotRunning 找不到状态栏进程
var ErrNotRunning = errors.New("status bar process not found")

// Notifier tracks the PID of a bar process and signals it on demand.
type Notifier struct {
	process string
	signal  syscall.Signal
	findPID func(process string) (int, error)
	logger  zerolog.Logger

	pidMutex sync.RWMutex
	pid      int

	runMutex sync.Mutex
	stopChan chan struct{}
}

// NewNotifier 创建通知器，signal 为发给进程的信号编号
func NewNotifier(process string, signal int) *Notifier {
	return &Notifier{
		process: process,
		signal:  syscall.Signal(signal),
		findPID: pgrep,
		logger:  log.With().Str("component", "statusbar").Logger(),
		pid:     -1,
	}
}

// Start refreshes the PID now and then every interval until Stop.
func (n *Notifier) Start(interval time.Duration) {
	n.runMutex.Lock()
	defer n.runMutex.Unlock()
	if n.stopChan != nil {
		return
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if err := n.Refresh(); err != nil {
		n.logger.Debug().Err(err).Str("process", n.process).Msg("Status bar not running yet")
	}

	stop := make(chan struct{})
	n.stopChan = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := n.Refresh(); err != nil {
					n.logger.Debug().Err(err).Str("process", n.process).Msg("Failed to refresh status bar PID")
				}
			case <-stop:
				return
			}
		}
	}()
	n.logger.Info().Str("process", n.process).Int("signal", int(n.signal)).Msg("Status bar notifier started")
}

// Stop 停止刷新
func (n *Notifier) Stop() {
	n.runMutex.Lock()
	defer n.runMutex.Unlock()
	if n.stopChan == nil {
		return
	}
	close(n.stopChan)
	n.stopChan = nil
}

// Refresh 重新查找进程 PID
func (n *Notifier) Refresh() error {
	pid, err := n.findPID(n.process)

	n.pidMutex.Lock()
	oldPID := n.pid
	if err != nil {
		n.pid = -1
	} else {
		n.pid = pid
	}
	n.pidMutex.Unlock()

	if err != nil {
		return err
	}
	if oldPID != pid {
		n.logger.Debug().Int("old_pid", oldPID).Int("pid", pid).Msg("Status bar PID updated")
	}
	return nil
}

// PID 当前记录的 PID，未找到时为 -1
func (n *Notifier) PID() int {
	n.pidMutex.RLock()
	defer n.pidMutex.RUnlock()
	return n.pid
}

// Notify 发送信号
func (n *Notifier) Notify() error {
	pid := n.PID()
	if pid <= 0 {
		return ErrNotRunning
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	if err := process.Signal(n.signal); err != nil {
		return fmt.Errorf("failed to send signal %d to process %d: %w", int(n.signal), pid, err)
	}
	return nil
}

func pgrep(process string) (int, error) {
	output, err := exec.Command("pgrep", "-x", process).Output()
	if err != nil {
		return -1, ErrNotRunning
	}
	return firstPID(string(output))
}

// firstPID 取 pgrep 输出的第一个 PID
func firstPID(output string) (int, error) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return -1, fmt.Errorf("failed to parse PID %q: %w", line, err)
		}
		return pid, nil
	}
	return -1, ErrNotRunning
}
