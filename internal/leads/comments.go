// Package leads holds the lead list and modal logic of the dashboard: paging,
// display formatting, comment logging, saving and CSV export.
package leads

import (
	"strings"
	"time"
)

const (
	// CommentSeparator divides entries of the comment log.
	CommentSeparator       = "\n---\n"
	commentTimestampLayout = "02/01/2006, 15:04:05"
)

// CommentEntry formats one timestamped log entry.
func CommentEntry(text string, at time.Time) string {
	return "[" + at.Format(commentTimestampLayout) + "] " + text
}

// AppendComment prepends a new entry to the log, keeping the comment as typed.
// Blank comments report false and the log must then be left out of the update.
func AppendComment(existingLog string, newComment string, at time.Time) (string, bool) {
	if strings.TrimSpace(newComment) == "" {
		return existingLog, false
	}
	entry := CommentEntry(newComment, at)
	if existingLog == "" {
		return entry, true
	}
	return entry + CommentSeparator + existingLog, true
}
