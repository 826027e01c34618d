package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads",
	Long: `List registered downloads with their file size and download count.

Examples:
  ferry list
  ferry list --category apps
  ferry list --prefix releases/ --all`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var (
	listPrefix   string
	listCategory string
	listLimit    int
	listAll      bool
)

func init() {
	listCmd.Flags().StringVarP(&listPrefix, "prefix", "p", "", "only names starting with prefix")
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "only downloads in category")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", ferry.DefaultListLimit, "page size")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "follow pages until the end")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	downloads, next, err := listDownloads(ctx, a.service, ferry.ListQuery{
		NamePrefix: listPrefix,
		Category:   listCategory,
		Limit:      listLimit,
	}, listAll)
	if err != nil {
		return err
	}

	renderDownloads(os.Stdout, downloads)

	if next != "" {
		fmt.Fprintf(os.Stderr, "more results available, use --all to list everything\n")
	}
	return nil
}

// listDownloads returns one page, or every page when all is set, together
// with the cursor of the next page.
func listDownloads(ctx context.Context, service *ferry.Service, q ferry.ListQuery, all bool) ([]ferry.Download, string, error) {
	var downloads []ferry.Download

	for {
		result, err := service.List(ctx, q)
		if err != nil {
			return nil, "", err
		}
		downloads = append(downloads, result.Items...)

		if !all || result.NextCursor == "" {
			return downloads, result.NextCursor, nil
		}
		q.Cursor = result.NextCursor
	}
}

func renderDownloads(w io.Writer, downloads []ferry.Download) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Name", "Category", "Size", "Downloads", "Protected", "Updated"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	rows := lo.Map(downloads, func(d ferry.Download, _ int) []string {
		return []string{
			strconv.FormatInt(d.ID, 10),
			d.Name,
			d.Category,
			fileSize(d.FileURL),
			humanize.Comma(d.DownloadCount),
			protection(d),
			humanize.Time(d.UpdatedAt),
		}
	})
	table.AppendBulk(rows)

	table.SetFooter([]string{"", "", "", "", humanize.Comma(lo.SumBy(downloads, func(d ferry.Download) int64 {
		return d.DownloadCount
	})), "", ""})

	table.Render()
}

func fileSize(locator string) string {
	info, err := os.Stat(locator)
	if err != nil || info.IsDir() {
		return "-"
	}
	return humanize.IBytes(uint64(info.Size())) //nolint:gosec // file sizes are non-negative
}

func protection(d ferry.Download) string {
	var parts []string
	if d.Password != "" {
		parts = append(parts, "password")
	}
	if d.Rules.Enabled {
		parts = append(parts, fmt.Sprintf("%s %d rules", d.Rules.Action, len(d.Rules.Rules)))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
