package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"
)

const maxLineBytes = 1024 * 1024

// Position identifies a read position within a specific file. Inode changes
// when the pointer link moves to a new run's log.
type Position struct {
	Offset int64
	Inode  uint64
}

// Last returns up to limit final lines of path and the position after them.
// A missing file yields no lines and a zero position.
func Last(path string, limit int) ([]string, Position, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Position{}, nil
		}
		return nil, Position{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	pos, err := positionOf(file)
	if err != nil {
		return nil, Position{}, err
	}
	if limit <= 0 {
		return nil, pos, nil
	}

	scanner := newScanner(io.LimitReader(file, pos.Offset))
	ring := make([]string, limit)
	count, next := 0, 0
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % limit
		count = min(count+1, limit)
	}
	if err := scanner.Err(); err != nil {
		return nil, Position{}, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = next
	}
	for i := range count {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, pos, nil
}

// Follow polls path every interval and calls emit for each complete line
// written after pos. It returns ctx.Err() when ctx ends. A shrunken or
// replaced file is read again from the start.
func Follow(ctx context.Context, path string, pos Position, interval time.Duration, emit func(string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		next, err := readNew(path, pos, emit)
		if err != nil {
			return err
		}
		pos = next
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readNew(path string, pos Position, emit func(string)) (Position, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return pos, nil
		}
		return pos, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	current, err := positionOf(file)
	if err != nil {
		return pos, err
	}
	if current.Inode != pos.Inode || current.Offset < pos.Offset {
		pos = Position{Inode: current.Inode}
	}
	if current.Offset == pos.Offset {
		return pos, nil
	}
	if _, err := file.Seek(pos.Offset, io.SeekStart); err != nil {
		return pos, fmt.Errorf("seek log file: %w", err)
	}

	// only whole lines are emitted; a partial last line waits for the next poll
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return pos, nil
			}
			return pos, fmt.Errorf("read log file: %w", err)
		}
		pos.Offset += int64(len(line))
		emit(line[:len(line)-1])
	}
}

func positionOf(file *os.File) (Position, error) {
	info, err := file.Stat()
	if err != nil {
		return Position{}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Position{}, fmt.Errorf("log path %q is a directory", file.Name())
	}
	pos := Position{Offset: info.Size()}
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		pos.Inode = st.Ino
	}
	return pos, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
