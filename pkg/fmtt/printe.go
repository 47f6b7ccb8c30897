// Package fmtt holds small formatting helpers for error reporting
// before the structured logger exists (config parsing happens first,
// so its failures can't go through zap).
package fmtt

import (
	"errors"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
)

// PrintErrChain writes each layer of an error chain to stderr, one
// line per wrap, outermost first.
func PrintErrChain(err error) {
	if err == nil {
		fmt.Fprintln(os.Stderr, "<nil>")
		return
	}
	for i, e := 0, err; e != nil; i, e = i+1, errors.Unwrap(e) {
		fmt.Fprintf(os.Stderr, "[%d] %T: %v\n", i, e, e)
	}
}

// SdumpErrChain renders the full structure of every layer of an error
// chain via go-spew, for interactive debugging of wrapped errors whose
// Error() strings hide fields.
func SdumpErrChain(err error) string {
	var out string
	for i, e := 0, err; e != nil; i, e = i+1, errors.Unwrap(e) {
		out += fmt.Sprintf("[%d] %T\n%s", i, e, spew.Sdump(e))
	}
	return out
}
