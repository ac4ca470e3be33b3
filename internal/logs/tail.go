// Package logs reads trailing lines from the daemon log file for the CLI.
// Callers poll with the returned offset to pick up newly appended lines.
package logs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLineBytes bounds a single log line; longer lines are split by the
// scanner's buffer limit.
const maxLineBytes = 1024 * 1024

// Tail reads lines from the log at path. A negative offset returns the
// last limit lines of the file; a non-negative offset returns up to limit
// lines appended after it. The returned offset points just past the last
// line read. A missing file yields no lines and offset zero.
func Tail(path string, offset int64, limit int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}

	if offset < 0 {
		return tailEnd(file, limit)
	}
	if offset > info.Size() {
		offset = info.Size()
	}
	return readAfter(file, offset, limit)
}

// tailEnd collects the final limit lines with a ring buffer so the whole
// file never has to fit in memory.
func tailEnd(file *os.File, limit int) ([]string, int64, error) {
	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		return nil, end, err
	}

	scanner := newLineScanner(file)
	ring := make([]string, limit)
	total := 0
	for scanner.Scan() {
		ring[total%limit] = scanner.Text()
		total++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	end, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	count := total
	if count > limit {
		count = limit
	}
	lines := make([]string, count)
	for i := 0; i < count; i++ {
		lines[i] = ring[(total-count+i)%limit]
	}
	return lines, end, nil
}

func readAfter(file *os.File, offset int64, limit int) ([]string, int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	newOffset := offset
	for limit <= 0 || len(lines) < limit {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A trailing partial line stays unread until its newline arrives.
			break
		}
		newOffset += int64(len(line))
		lines = append(lines, line[:len(line)-1])
	}
	return lines, newOffset, nil
}

func newLineScanner(file *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}
