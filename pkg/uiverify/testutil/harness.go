package testutil

import (
	"io"
	"log/slog"

	"github.com/muesli/termenv"

	"github.com/thesyncim/uiverify/pkg/uiverify"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewReporter returns a colourless reporter writing artifacts to dir and
// console output to w.
func NewReporter(dir string, w io.Writer) *uiverify.Reporter {
	if w == nil {
		w = io.Discard
	}
	return uiverify.NewReporter(dir, w, Logger(), termenv.WithProfile(termenv.Ascii))
}
