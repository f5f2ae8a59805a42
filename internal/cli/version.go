package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version": Version,
				"go":      runtime.Version(),
				"server":  a.cfg.APIURL,
			}
			return a.render(info, func(w io.Writer) {
				fmt.Fprintf(w, "blog %s (%s)\n", Version, runtime.Version())
			})
		},
	}
}
