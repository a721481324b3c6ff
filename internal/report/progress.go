package report

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

// NewProgressBar builds a determinate progress bar for a batch of total
// items, rendered to w. Neither the downloader nor the rsync runner calls
// it; rsync's --progress output goes to the log.
func NewProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionOnCompletion(func() { io.WriteString(w, "\n") }),
	)
}
