package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrClosed is returned when writing to a closed trajectory.
	ErrClosed = errors.New("persistence: trajectory is closed")
	// ErrTableFormat is returned for a ragged or non-numeric table.
	ErrTableFormat = errors.New("persistence: malformed table")
)

// WriteTable dumps m as whitespace-delimited rows. The file is written next
// to path and renamed into place so readers never see a partial table.
func WriteTable(path string, m mat.Matrix) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	if err := WriteTableTo(tmp, m); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace table file: %w", err)
	}
	return nil
}

// WriteTableTo writes m to w, one row per line in %.18e notation.
func WriteTableTo(w io.Writer, m mat.Matrix) error {
	bw := bufio.NewWriter(w)
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if j > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(m.At(i, j), 'e', 18, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadTable loads a table written by WriteTable.
func ReadTable(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()
	return ReadTableFrom(f)
}

// ReadTableFrom parses whitespace-delimited rows. Blank lines and lines
// starting with '#' are skipped.
func ReadTableFrom(r io.Reader) (*mat.Dense, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var data []float64
	rows, cols := 0, -1
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if cols >= 0 && len(fields) != cols {
			return nil, fmt.Errorf("line %d: %d columns, want %d: %w", line, len(fields), cols, ErrTableFormat)
		}
		cols = len(fields)
		for _, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %q: %w", line, s, ErrTableFormat)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("empty table: %w", ErrTableFormat)
	}
	return mat.NewDense(rows, cols, data), nil
}
