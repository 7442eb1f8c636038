package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lachlan2k/storefront-gate/internal/apiclient"
	"github.com/lachlan2k/storefront-gate/internal/models"
	"github.com/lachlan2k/storefront-gate/internal/webserver"
)

func (a *app) fetchCommand() *cobra.Command {
	var method, data string

	cmd := &cobra.Command{
		Use:   "fetch <path>",
		Short: "Call the storefront API with the stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				body   io.Reader
				header http.Header
			)
			if data != "" {
				body = strings.NewReader(data)
				header = http.Header{"Content-Type": {"application/json"}}
				if method == "" {
					method = http.MethodPost
				}
			}

			res, err := a.api.Fetch(cmd.Context(), strings.ToUpper(method), args[0], body, header)
			if err != nil {
				return err
			}
			defer res.Body.Close()

			fmt.Fprintln(cmd.ErrOrStderr(), res.Status)
			_, err = io.Copy(cmd.OutOrStdout(), res.Body)
			return err
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", "", "HTTP method, GET unless --data is given")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")

	return cmd
}

func (a *app) profileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the signed in user's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := apiclient.GetJSON[models.UserProfile](cmd.Context(), a.api, a.conf.API.ProfilePath)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(profile)
		},
	}
}

func (a *app) ordersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List the signed in user's orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := apiclient.GetJSON[[]models.Order](cmd.Context(), a.api, a.conf.API.OrdersPath)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tITEMS\tTOTAL")
			for _, o := range *orders {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%.2f\n", o.ID, o.Status, o.CreatedAt, o.ItemCount(), o.TotalPrice)
			}
			return tw.Flush()
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local navigation server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return webserver.New(a.conf, a.session, a.api, a.logger).Run(cmd.Context())
		},
	}
}
