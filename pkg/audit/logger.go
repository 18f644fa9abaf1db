package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/nfvpack/nfvpack/pkg/util"
)

// Logger records events and answers queries over them.
type Logger interface {
	Log(event *Event) error
	Query(filter Filter) ([]*Event, error)
	Close() error
}

// Filter selects events. Zero fields match everything.
type Filter struct {
	User        string
	Operation   string
	Package     string
	Since       time.Time
	SuccessOnly bool
	FailureOnly bool
	Last        int // keep only the newest N matches
}

// Match reports whether e passes the filter.
func (f Filter) Match(e *Event) bool {
	switch {
	case f.User != "" && e.User != f.User,
		f.Operation != "" && e.Operation != f.Operation,
		f.Package != "" && e.Package != f.Package,
		!f.Since.IsZero() && e.Timestamp.Before(f.Since),
		f.SuccessOnly && !e.Success,
		f.FailureOnly && e.Success:
		return false
	}
	return true
}

// RotationConfig bounds the live log file and the number of rotated copies.
// Zero MaxSize never rotates; zero MaxBackups keeps every rotated file.
type RotationConfig struct {
	MaxSize    int64
	MaxBackups int
}

// backupStamp names rotated files; it sorts lexically in time order.
const backupStamp = "20060102T150405.000000000"

// FileLogger appends events as JSON lines. A full file is renamed to
// <path>.<timestamp> and Query reads those backups, oldest first, before the
// live file, so history survives rotation.
type FileLogger struct {
	path     string
	rotation RotationConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// NewFileLogger opens (or creates) the log at path.
func NewFileLogger(path string, rotation RotationConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	l := &FileLogger{path: path, rotation: rotation}
	if err := l.open(); err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return l, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.file, l.size = file, info.Size()
	return nil
}

// Log appends one event, rotating first when the line would overflow MaxSize.
func (l *FileLogger) Log(event *Event) error {
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("audit log is closed")
	}
	if l.rotation.MaxSize > 0 && l.size > 0 && l.size+int64(len(line)) > l.rotation.MaxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("rotating audit log: %w", err)
		}
	}
	n, err := l.file.Write(line)
	l.size += int64(n)
	return err
}

// Query returns the matching events in the order they were logged, across
// rotated backups and the live file.
func (l *FileLogger) Query(filter Filter) ([]*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	backups, err := l.backups()
	if err != nil {
		return nil, err
	}
	events := []*Event{}
	for _, path := range append(backups, l.path) {
		events, err = readEvents(path, filter, events)
		if err != nil {
			return nil, err
		}
	}
	if filter.Last > 0 && filter.Last < len(events) {
		events = events[len(events)-filter.Last:]
	}
	return events, nil
}

// Close closes the live file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func readEvents(path string, filter Filter, events []*Event) ([]*Event, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return events, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for line := 1; scanner.Scan(); line++ {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			util.Warnf("audit: skipping malformed entry %s:%d: %v", path, line, err)
			continue
		}
		if filter.Match(&event) {
			events = append(events, &event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return events, nil
}

// backups lists rotated files oldest first.
func (l *FileLogger) backups() ([]string, error) {
	matches, err := filepath.Glob(l.path + ".*")
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (l *FileLogger) rotate() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil

	target := l.path + "." + time.Now().UTC().Format(backupStamp)
	for i := 1; ; i++ {
		if _, err := os.Lstat(target); errors.Is(err, fs.ErrNotExist) {
			break
		}
		target = fmt.Sprintf("%s.%s-%d", l.path, time.Now().UTC().Format(backupStamp), i)
	}
	if err := os.Rename(l.path, target); err != nil {
		return err
	}
	if err := l.open(); err != nil {
		return err
	}
	return l.prune()
}

func (l *FileLogger) prune() error {
	if l.rotation.MaxBackups <= 0 {
		return nil
	}
	backups, err := l.backups()
	if err != nil {
		return err
	}
	for len(backups) > l.rotation.MaxBackups {
		if err := os.Remove(backups[0]); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		backups = backups[1:]
	}
	return nil
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger
)

// SetDefaultLogger sets the logger behind Log and Query; nil disables both.
func SetDefaultLogger(logger Logger) {
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

func getDefaultLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Log records an event with the default logger, if one is set.
func Log(event *Event) error {
	if l := getDefaultLogger(); l != nil {
		return l.Log(event)
	}
	return nil
}

// Query searches the default logger. Without one there are no events.
func Query(filter Filter) ([]*Event, error) {
	if l := getDefaultLogger(); l != nil {
		return l.Query(filter)
	}
	return []*Event{}, nil
}
