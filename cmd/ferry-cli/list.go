package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry/clientcli"
)

var (
	listPrefix   string
	listCategory string
	listLimit    int
	listAll      bool
	listCursor   string
)

var listCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List downloads on the server",
	Long: `List downloads through the admin API. The token needs the admin role.

Examples:
  ferry-cli list
  ferry-cli list releases/
  ferry-cli list --category apps --all
  ferry-cli list --cursor "eyJpZCI6..."`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listPrefix, "prefix", "", "only names starting with prefix")
	listCmd.Flags().StringVar(&listCategory, "category", "", "only downloads in category")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 0, "page size (server default 50, max 1000)")
	listCmd.Flags().BoolVar(&listAll, "all", false, "fetch every page")
	listCmd.Flags().StringVar(&listCursor, "cursor", "", "pagination cursor")
}

func runList(cmd *cobra.Command, args []string) error {
	prefix := listPrefix
	if len(args) > 0 {
		prefix = args[0]
	}

	client, err := getClient()
	if err != nil {
		return err
	}

	result, err := client.List(cmd.Context(), clientcli.ListOptions{
		Prefix:   prefix,
		Category: listCategory,
		Limit:    listLimit,
		Cursor:   listCursor,
		All:      listAll,
	})
	if err != nil {
		return err
	}

	return getFormatter().FormatList(os.Stdout, result)
}

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events <download-id>",
	Short: "Show recent events for a download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return clientcli.ErrEmptyID
		}

		client, err := getClient()
		if err != nil {
			return err
		}

		events, err := client.Events(cmd.Context(), id, eventsLimit)
		if err != nil {
			return err
		}
		return getFormatter().FormatEvents(os.Stdout, id, events)
	},
}

func init() {
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "l", 0, "number of events (server default 50)")
}
