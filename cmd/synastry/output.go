package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/types"
)

// render writes v as indented JSON, or through text for the text format
func render(w io.Writer, format string, v any, text func(io.Writer)) error {
	if format == formatText {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeScore(w io.Writer, percent, base, penalty, bonus int, o synastry.Orientation, modules []synastry.ModuleScore) {
	fmt.Fprintf(w, "Compatibility: %d%% (base %d, penalty %d, bonus %+d)\n", percent, base, penalty, bonus)
	fmt.Fprintf(w, "Orientation:   %s\n\n", o)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tWEIGHT\tRAW\tNORMALIZED")
	for _, m := range modules {
		fmt.Fprintf(tw, "%s\t%.2f\t%+.3f\t%.3f\n", m.Key, m.Weight, m.Raw, m.Normalized)
	}
	tw.Flush()
}

func writeNotes(w io.Writer, title string, notes []string) {
	if len(notes) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, n := range notes {
		fmt.Fprintf(w, "  - %s\n", n)
	}
}

func writeRanking(w io.Writer, items []types.BatchItem) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tPERCENT\tERROR")
	for i, it := range items {
		if it.Error != nil {
			fmt.Fprintf(tw, "-\t%s\t-\t%s: %s\n", it.ID, it.Error.Code, it.Error.Message)
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t\n", i+1, it.ID, it.Percent)
	}
	tw.Flush()
}

func writeTables(w io.Writer, t types.TablesResponse) {
	fmt.Fprintf(w, "Rule set %s\n\n", t.Version)

	keys := make([]string, 0, len(t.Weights))
	for k := range t.Weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tWEIGHT")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%.2f\n", k, t.Weights[k])
	}
	tw.Flush()

	fmt.Fprintf(w, "\nOverlay rules: %d, mitigations: %d, expression pairs: %d, bonus: %d\n",
		t.Overlays, t.Mitigations, len(t.Expression), t.Bonus)
	fmt.Fprintf(w, "Penalty bases: single %d, mutual %d\n", t.Penalty.SingleBase, t.Penalty.MutualBase)
}
