package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/boardproject/boardadmin/pkg/admin"
)

var jsonOutput bool

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printMembers(w io.Writer, members []admin.Member) error {
	if len(members) == 0 {
		fmt.Fprintln(w, "No members")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NO\tEMAIL\tNICKNAME\tTEL\tENROLLED")
	for _, m := range members {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.MemberNo, m.MemberEmail, m.MemberNickname, m.MemberTel, m.EnrollDate)
	}
	return tw.Flush()
}

func printBoards(w io.Writer, boards []admin.Board) error {
	if len(boards) == 0 {
		fmt.Fprintln(w, "No boards")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NO\tTITLE\tBOARD\tAUTHOR")
	for _, b := range boards {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", b.BoardNo, b.BoardTitle, b.BoardName, b.MemberNickname)
	}
	return tw.Flush()
}
