package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wippyai/consteval/intrinsic"
)

// intrinsicInfo is the JSON form of one dispatch table row.
type intrinsicInfo struct {
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Family    string `json:"family"`
	Arity     int    `json:"arity"`
	TypeArgs  int    `json:"type_args"`
	Callbacks int    `json:"callbacks"`
}

func newListCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the supported intrinsics",
		Long: `List every intrinsic in the dispatch table.

Atomic operations are listed once; the ordering suffix
(_seqcst, _acquire, _release, _acqrel, _relaxed) is accepted on lookup.
A type argument count of -1 means the call may pass any number.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listIntrinsics(root, intrinsic.NewDispatcher().Registry(), cmd.OutOrStdout())
		},
	}
}

func listIntrinsics(opts *rootOptions, reg *intrinsic.Registry, w io.Writer) error {
	names := reg.Names()
	infos := make([]intrinsicInfo, len(names))
	for i, n := range names {
		d := reg.Get(n)
		infos[i] = intrinsicInfo{
			Name:      d.Name,
			Unit:      d.Unit.String(),
			Family:    d.Family.String(),
			Arity:     d.Arity,
			TypeArgs:  d.TypeArgs,
			Callbacks: d.Callbacks,
		}
	}

	if opts.Format == "json" {
		return writeJSON(w, infos)
	}

	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{info.Name, info.Unit, info.Family, strconv.Itoa(info.Arity), strconv.Itoa(info.TypeArgs)}
	}
	headers := []string{"NAME", "UNIT", "FAMILY", "ARITY", "TYPE ARGS"}
	_, err := fmt.Fprintln(w, newStyler(w).table(headers, rows))
	return err
}
