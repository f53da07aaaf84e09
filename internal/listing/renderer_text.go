package listing

import (
	"fmt"
	"io"
)

// RenderText writes one line per row to w: attribute string, kind tag, first
// cluster, reportable/slot offsets in hex, the optional size column and the
// name.
func RenderText(w io.Writer, l Listing) {
	fmt.Fprintf(w, "%s:\n", l.Path)
	for _, row := range l.Rows {
		fmt.Fprintf(w, "%5s %4s #%05d +%08X/%08X", row.Attrs, row.Kind, row.Cluster, row.Offset, row.SlotOffset)
		if row.Size != nil {
			fmt.Fprintf(w, " %10d", *row.Size)
		}
		fmt.Fprintf(w, " %s\n", row.Name)
	}
}
