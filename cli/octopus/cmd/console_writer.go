package cmd

import (
	"fmt"
	"io"
	"os"
)

// consoleWriter is where the commands print their output, tests capture it
// by replacing the writer.
var consoleWriter console = &lineWriter{out: os.Stdout}

// console prints command output one line at a time.
type console interface {
	Line(a ...any)
	Linef(format string, a ...any)
}

type lineWriter struct {
	out io.Writer
}

func (w *lineWriter) Line(a ...any) {
	_, _ = fmt.Fprintln(w.out, a...)
}

func (w *lineWriter) Linef(format string, a ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", a...)
}
