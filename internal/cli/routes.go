package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lachlan2k/storefront-gate/internal/accesscontrol"
)

func (a *app) routesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the resolved route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PATTERN\tNAME\tACCESS")
			for _, r := range a.conf.RouteTable().Routes() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Pattern, displayOr(r.Name, "-"), r.Access)
			}
			return tw.Flush()
		},
	}
}

func (a *app) checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Decide whether the stored session may navigate to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			guard := accesscontrol.NewGuard(a.conf.RouteTable(), a.session, a.conf.SigninPath)
			decision, match := guard.Navigate(args[0])

			route := "(no route)"
			if match != nil {
				route = displayOr(match.Route.Name, match.Route.Pattern)
			}

			out := cmd.OutOrStdout()
			if decision.Allowed() {
				fmt.Fprintf(out, "proceed %s\n", route)
			} else {
				fmt.Fprintf(out, "redirect %s (%s needs %s)\n", decision.Location, route, match.Route.Access)
			}
			return nil
		},
	}
}
