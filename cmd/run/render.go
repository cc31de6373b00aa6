package main

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/wippyai/prolog-runtime/machine"
)

// writeAnswers prints up to limit answers of query, one per line. A limit of
// zero prints them all.
func writeAnswers(ctx context.Context, w io.Writer, m *machine.Machine, query string, limit int) error {
	var (
		n    int
		werr error
	)
	err := m.Each(ctx, query, func(leaf *machine.LeafAnswer) bool {
		if _, werr = fmt.Fprintf(w, "%s.\n", leaf); werr != nil {
			return false
		}
		n++
		return limit <= 0 || n < limit
	})
	if err != nil {
		return err
	}
	return werr
}

// renderAnswers returns the lines writeAnswers would print.
func renderAnswers(ctx context.Context, m *machine.Machine, query string, limit int) (string, error) {
	var buf bytes.Buffer
	err := writeAnswers(ctx, &buf, m, query, limit)
	return buf.String(), err
}
