package history

import (
	"fmt"
	"io"
	"time"
)

// WriteReport renders e as the printable plain-text report for one saved reading.
func (e Entry) WriteReport(w io.Writer) error {
	r := e.Reading
	_, err := fmt.Fprintf(w,
		"Strip reading %s\n"+
			"Seed:          %s\n"+
			"Language:      %s\n"+
			"Timestamp:     %s\n"+
			"Zone:          %s\n"+
			"Germination %%: %d%%\n"+
			"RGB:           %d, %d, %d\n"+
			"HSV:           %s\n"+
			"Rule:          %s\n",
		e.ID, e.Seed, e.Lang, e.Timestamp.UTC().Format(time.RFC3339),
		r.Zone, r.GerminationPercent,
		r.RGB.R, r.RGB.G, r.RGB.B,
		r.HSV, r.Rule,
	)
	return err
}
