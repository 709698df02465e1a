// Package writer implements the spreadsheet-writer boundary the Dispatcher
// hands tabular output to: the engine stays ignorant of the destination's
// protocol, the only contract is the write signature and the two write
// modes (Design Note §9 "spreadsheet writer boundary").
package writer

import (
	"context"

	"github.com/exportengine/engine/internal/model"
)

// Writer delivers a run's (headers, rows) to an opaque destination
// descriptor, honoring the configuration's write mode (spec §4.8).
type Writer interface {
	Write(ctx context.Context, destination string, headers []string, rows [][]string, mode model.WriteMode) (rowsWritten int, err error)
}

// WriterError wraps any failure from the spreadsheet writer; the run
// transitions to failed with this error's message (spec §7).
type WriterError struct {
	Err error
}

func (e *WriterError) Error() string { return "writer error: " + e.Err.Error() }
func (e *WriterError) Unwrap() error { return e.Err }
