// Package kvstore is a small file-backed string map, one "key => value"
// entry per line.
package kvstore

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"lyrics-engine/pkg/fileutil"
)

const (
	kvSeparator = " => "
	kvFormat    = "%s" + kvSeparator + "%s\n"
)

// ErrInvalidEntry 键或值包含分隔符或换行
var ErrInvalidEntry = errors.New("key or value contains a separator or newline")

// Store 持久化的键值存储
type Store struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// Open loads path, creating nothing until the first write. Malformed lines
// are skipped.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string]string)}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open kv file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), kvSeparator)
		if !ok || key == "" {
			continue
		}
		s.data[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read kv file %s: %w", path, err)
	}
	return s, nil
}

// Get 获取值
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Set 设置键值并写回文件
func (s *Store) Set(key, value string) error {
	if !valid(key) || !valid(value) || key == "" {
		return ErrInvalidEntry
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return s.flush()
}

// GetOrCreate returns the stored value for key, storing create() first when
// the key is missing.
func (s *Store) GetOrCreate(key string, create func() string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	v := create()
	if !valid(key) || !valid(v) || key == "" {
		return "", ErrInvalidEntry
	}
	s.data[key] = v
	if err := s.flush(); err != nil {
		return v, err
	}
	return v, nil
}

// Delete 删除键
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

// Clear 清空所有键
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]string)
	return s.flush()
}

// flush rewrites the whole file; callers hold mu.
func (s *Store) flush() error {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, kvFormat, k, s.data[k])
	}
	return fileutil.WriteFileOverwrite(s.path, []byte(b.String()), 0600)
}

func valid(s string) bool {
	return !strings.Contains(s, kvSeparator) && !strings.ContainsAny(s, "\r\n")
}
