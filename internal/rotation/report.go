package rotation

import (
	"fmt"
	"sort"
	"strings"
)

// Report renders the outcome for an operator: the retained buckets of every
// backup set followed by the combined delete list.
func (o *Outcome) Report() string {
	var b strings.Builder

	b.WriteString("---------Rotation Results---------\n")
	fmt.Fprintf(&b, "Folder: %s (%s)\n", o.Folder, o.Mode)

	for _, name := range o.Names {
		state, ok := o.States[name]
		if !ok {
			fmt.Fprintf(&b, "[%s] classification failed\n", name)
			continue
		}

		fmt.Fprintf(&b, "[%s]\n", name)
		writeBucket(&b, "Hourly", state.Hourly)
		writeBucket(&b, "Daily", state.Daily)
		writeBucket(&b, "Monthly", state.Monthly)
		writeBucket(&b, "Yearly", state.Yearly)
	}

	b.WriteString("To Delete:\n")
	for _, rec := range o.ToDelete {
		fmt.Fprintf(&b, " '%s'\n", rec.Path)
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeBucket(b *strings.Builder, title string, bucket map[string]Record) {
	b.WriteString(title + ":\n")
	for _, key := range sortedKeys(bucket) {
		fmt.Fprintf(b, " '%s': '%s'\n", key, bucket[key].Path)
	}
}

func sortedKeys(bucket map[string]Record) []string {
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
