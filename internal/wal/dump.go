package wal

import (
	"fmt"
	"io"
)

// Dump writes a human-readable rendering of the log to w, one line per
// record, for operator diagnostics.
func (w *WAL) Dump(out io.Writer) error {
	i := 0
	return w.Replay(func(rec Record) error {
		i++
		ord := "-"
		if rec.HasOrdinal {
			ord = fmt.Sprintf("%d", rec.Ordinal)
		}

		var detail string
		switch rec.Type {
		case RecordInsert:
			vector, pairs, err := DecodeInsert(rec.Payload)
			if err != nil {
				return err
			}
			detail = fmt.Sprintf("dim=%d pairs=%d", len(vector), len(pairs))
		case RecordUpdate:
			vector, err := DecodeUpdate(rec.Payload)
			if err != nil {
				return err
			}
			detail = fmt.Sprintf("dim=%d", len(vector))
		case RecordMetadataUpdate:
			pairs, err := DecodeMetadata(rec.Payload)
			if err != nil {
				return err
			}
			detail = fmt.Sprintf("pairs=%d", len(pairs))
		}

		if detail != "" {
			detail = " " + detail
		}
		_, err := fmt.Fprintf(out, "#%d %-8s ord=%s%s\n", i, rec.Type, ord, detail)
		return err
	})
}
