package settings

import (
	"encoding/json"
	"fmt"

	"github.com/alexjbarnes/settings-sync/internal/models"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// changeSummary reports how many lines of the indented JSON form of the
// syncable projection were added and removed going from before to after.
func changeSummary(before, after *models.Configuration) string {
	a, errA := json.MarshalIndent(StripSyncable(before), "", " ")
	b, errB := json.MarshalIndent(StripSyncable(after), "", " ")

	if errA != nil || errB != nil {
		return "unavailable"
	}

	dmp := diffmatchpatch.New()

	ca, cb, lines := dmp.DiffLinesToChars(string(a), string(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var added, removed int

	for _, d := range diffs {
		n := countLines(d.Text)

		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		case diffmatchpatch.DiffEqual:
		}
	}

	return fmt.Sprintf("+%d -%d lines", added, removed)
}

func countLines(s string) int {
	if s == "" {
		return 0
	}

	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}

	if s[len(s)-1] != '\n' {
		n++
	}

	return n
}
