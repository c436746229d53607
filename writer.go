package wlansweep

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// GoodputSample is the result row of one sweep iteration
type GoodputSample struct {
	StationCount   int     `json:"stations" yaml:"stations"`
	ThroughputMbps float64 `json:"throughput_mbps" yaml:"throughput_mbps"`
}

// String formats the sample as "<stations> <throughput>", with the throughput
// printed to six significant digits
func (gs GoodputSample) String() string {
	return strconv.Itoa(gs.StationCount) + " " + strconv.FormatFloat(gs.ThroughputMbps, 'g', 6, 64)
}

// SampleWriter receives the sample of every completed iteration
type SampleWriter interface {
	Write(gs GoodputSample) error
}

// StdoutWriter prints samples, one per line
type StdoutWriter struct {
	Out io.Writer // os.Stdout when nil
}

// Write outputs a single sample.
func (w *StdoutWriter) Write(gs GoodputSample) error {
	out := w.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := fmt.Fprintln(out, gs.String())
	return err
}

// FileWriter appends samples to a results file.  The file is opened for every
// row and closed straight after, so rows already written survive a crash
type FileWriter struct {
	path string
}

// NewFileWriter creates a FileWriter, checking that the file can be opened for appending
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return &FileWriter{path: path}, nil
}

// Path returns the results file name
func (f *FileWriter) Path() string {
	return f.path
}

// Write appends a single sample.
func (f *FileWriter) Write(gs GoodputSample) error {
	fd, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(fd, gs.String()); err != nil {
		fd.Close()
		return err
	}
	return fd.Close()
}

// MultiWriter fan-outs samples to multiple writers.
type MultiWriter struct {
	writers []SampleWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(ws ...SampleWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Write sends a sample to all writers.
func (mw *MultiWriter) Write(gs GoodputSample) error {
	for _, w := range mw.writers {
		if err := w.Write(gs); err != nil {
			return err
		}
	}
	return nil
}

// SliceWriter keeps samples in memory
type SliceWriter struct {
	Samples []GoodputSample
}

func (sw *SliceWriter) Write(gs GoodputSample) error {
	sw.Samples = append(sw.Samples, gs)
	return nil
}

// ReadSamples parses a results file written by FileWriter.  Blank lines are skipped
func ReadSamples(path string) ([]GoodputSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseSamples(f)
}

// ParseSamples reads "<stations> <throughput>" rows
func ParseSamples(r io.Reader) ([]GoodputSample, error) {
	samples := make([]GoodputSample, 0)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo += 1
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields, found %d", lineNo, len(fields))
		}
		stations, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		tput, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		samples = append(samples, GoodputSample{StationCount: stations, ThroughputMbps: tput})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}
