package main

import (
	"io"

	"github.com/iti/wlansweep"
)

// newWriters sets up the sample writers: rows always go to out, and are
// appended to the results file when one is named.
func newWriters(out io.Writer, results string) (wlansweep.SampleWriter, error) {
	sw := &wlansweep.StdoutWriter{Out: out}
	if results == "" {
		return sw, nil
	}
	fw, err := wlansweep.NewFileWriter(results)
	if err != nil {
		return nil, err
	}
	return wlansweep.NewMultiWriter(sw, fw), nil
}
