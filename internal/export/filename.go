package export

import (
	"strings"

	"github.com/ldxinsight/catalog/internal/dataset"
)

var unsafeFilenameChars = strings.NewReplacer(
	`\`, "_", "/", "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// FileBase returns the download file name without extension: the trimmed
// title with path and shell metacharacters replaced by '_', or dataset-<id>
// when the title is blank.
func FileBase(d *dataset.Dataset) string {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return "dataset-" + d.ID
	}
	return unsafeFilenameChars.Replace(title)
}
