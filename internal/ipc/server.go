package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-engine/pkg/fileutil"
)

// maxFrameSize bounds one inbound frame; page responses can be large.
const maxFrameSize = 8 << 20

// Handler 处理客户端发来的消息
type Handler func(msg Message)

type Server struct {
	socketPath      string
	statusFile      string
	listener        net.Listener
	clientConns     map[net.Conn]struct{}
	clientConnsLock sync.Mutex
	lastResult      []byte
	lastLine        []byte
	lockFile        *os.File
	lockFilePath    string
	handler         Handler
	logger          zerolog.Logger
}

// NewServer 创建 IPC 服务，statusFile 非空时每行歌词同时写入该文件
func NewServer(socketPath, statusFile string, handler Handler) *Server {
	return &Server{
		socketPath:   socketPath,
		statusFile:   statusFile,
		clientConns:  make(map[net.Conn]struct{}),
		lockFilePath: socketPath + ".lock",
		handler:      handler,
		logger:       log.With().Str("component", "ipc").Logger(),
	}
}

func (s *Server) checkAndCleanOldLock() error {
	// 检查锁文件是否存在
	if _, err := os.Stat(s.lockFilePath); os.IsNotExist(err) {
		return nil
	}

	content, err := os.ReadFile(s.lockFilePath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read lock file, removing it")
		os.Remove(s.lockFilePath)
		return nil
	}

	pidStr := strings.TrimSpace(string(content))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		s.logger.Warn().Str("pid_str", pidStr).Msg("Invalid PID in lock file, removing it")
		os.Remove(s.lockFilePath)
		return nil
	}

	// 检查进程是否存在
	if !isProcessRunning(pid) {
		s.logger.Info().Int("old_pid", pid).Msg("Process in lock file is not running, removing lock file")
		os.Remove(s.lockFilePath)
		return nil
	}

	s.logger.Info().Int("existing_pid", pid).Msg("Another process is still running")
	return nil
}

func isProcessRunning(pid int) bool {
	// kill(pid, 0) 只检查进程是否存在
	return syscall.Kill(pid, 0) == nil
}

func (s *Server) acquireLock() error {
	if err := s.checkAndCleanOldLock(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to clean old lock file")
	}

	file, err := os.OpenFile(s.lockFilePath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}

	// 尝试获取独占锁
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return fmt.Errorf("another lyrics engine instance is already running")
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	// 写入当前进程ID到锁文件
	err = file.Truncate(0)
	if err == nil {
		_, err = fmt.Fprintf(file, "%d\n", os.Getpid())
	}
	if err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}

	s.lockFile = file
	s.logger.Info().Str("lock_file", s.lockFilePath).Int("pid", os.Getpid()).Msg("Acquired process lock")
	return nil
}

func (s *Server) releaseLock() {
	if s.lockFile != nil {
		syscall.Flock(int(s.lockFile.Fd()), syscall.LOCK_UN)
		s.lockFile.Close()
		os.Remove(s.lockFilePath)
		s.logger.Info().Str("lock_file", s.lockFilePath).Msg("Released process lock")
		s.lockFile = nil
	}
}

// Start 获取进程锁并开始监听
func (s *Server) Start() error {
	if err := s.acquireLock(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.socketPath); err != nil {
		s.releaseLock()
		return err
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock()
		return err
	}
	s.listener = listener

	s.logger.Info().Str("socket_path", s.socketPath).Msg("IPC server listening")
	go s.acceptConnections()
	return nil
}

func (s *Server) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to accept IPC connection")
			continue
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	s.clientConnsLock.Lock()
	s.clientConns[conn] = struct{}{}
	// 新客户端先收到最近的结果和歌词行
	for _, frame := range [][]byte{s.lastResult, s.lastLine} {
		if frame == nil {
			continue
		}
		if _, err := conn.Write(frame); err != nil {
			s.logger.Error().Err(err).Msg("Failed to send initial state")
			break
		}
	}
	s.clientConnsLock.Unlock()

	s.logger.Info().Msg("Client connected")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("Invalid IPC frame")
			continue
		}
		if s.handler != nil {
			s.handler(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("IPC read failed")
	}

	s.clientConnsLock.Lock()
	delete(s.clientConns, conn)
	s.clientConnsLock.Unlock()
	conn.Close()
	s.logger.Info().Msg("Client disconnected")
}

// Broadcast 向所有客户端发送消息
func (s *Server) Broadcast(msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode message")
		return
	}
	frame = append(frame, '\n')

	if msg.Type == TypeLine || msg.Type == TypeStatus {
		s.writeStatusFile(msg.Text)
	}

	s.clientConnsLock.Lock()
	defer s.clientConnsLock.Unlock()

	switch msg.Type {
	case TypeResult:
		s.lastResult = frame
		s.lastLine = nil
	case TypeLine, TypeStatus:
		s.lastLine = frame
	}

	for conn := range s.clientConns {
		if _, err := conn.Write(frame); err != nil {
			s.logger.Error().Err(err).Msg("Failed to write to client, removing")
			conn.Close()
			delete(s.clientConns, conn)
		}
	}
}

func (s *Server) writeStatusFile(text string) {
	if s.statusFile == "" || text == "" {
		return
	}
	if err := fileutil.WriteFileOverwrite(s.statusFile, []byte(text+"\n"), 0644); err != nil {
		s.logger.Debug().Err(err).Msg("Failed to write status file")
	}
}

// Close 停止监听并释放进程锁
func (s *Server) Close() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.clientConnsLock.Lock()
	for conn := range s.clientConns {
		conn.Close()
	}
	s.clientConnsLock.Unlock()
	s.releaseLock()
}
