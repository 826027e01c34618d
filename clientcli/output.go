package clientcli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"github.com/ferrydl/ferry"
)

// Formatter renders command results.
type Formatter interface {
	FormatList(w io.Writer, result *ferry.ListResult) error
	FormatEvents(w io.Writer, downloadID int64, events []ferry.Event) error
	FormatDownload(w io.Writer, result *DownloadResult) error
	FormatError(w io.Writer, err error) error
	FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error
	FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error
}

func NewFormatter(jsonOutput, quiet bool) Formatter {
	if jsonOutput {
		return &JSONFormatter{}
	}
	return &HumanFormatter{Quiet: quiet}
}

// HumanFormatter prints tables for terminals.
type HumanFormatter struct {
	Quiet bool
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

func (f *HumanFormatter) FormatList(w io.Writer, result *ferry.ListResult) error {
	if len(result.Items) == 0 {
		_, _ = fmt.Fprintln(w, "No downloads found")
		return nil
	}

	table := newTable(w, "ID", "Name", "Category", "Downloads", "Protected", "Updated")
	table.AppendBulk(lo.Map(result.Items, func(d ferry.Download, _ int) []string {
		return []string{
			strconv.FormatInt(d.ID, 10),
			d.Name,
			lo.CoalesceOrEmpty(d.Category, "-"),
			humanize.Comma(d.DownloadCount),
			protectedLabel(d),
			humanize.Time(d.UpdatedAt),
		}
	}))
	table.Render()

	if !f.Quiet {
		_, _ = fmt.Fprintf(w, "\n%d download(s)\n", len(result.Items))
		if result.NextCursor != "" {
			_, _ = fmt.Fprintf(w, "Next page: use --cursor %q\n", result.NextCursor)
		}
	}
	return nil
}

func protectedLabel(d ferry.Download) string {
	if d.Rules.Enabled {
		return "rules"
	}
	return "-"
}

func (f *HumanFormatter) FormatEvents(w io.Writer, downloadID int64, events []ferry.Event) error {
	if len(events) == 0 {
		_, _ = fmt.Fprintf(w, "No events for download %d\n", downloadID)
		return nil
	}

	table := newTable(w, "ID", "User", "IP", "When")
	table.AppendBulk(lo.Map(events, func(e ferry.Event, _ int) []string {
		return []string{
			strconv.FormatInt(e.ID, 10),
			lo.FromPtrOr(e.UserID, "-"),
			lo.FromPtrOr(e.IPAddress, "-"),
			e.CreatedAt.Format("2006-01-02 15:04:05"),
		}
	}))
	table.Render()
	return nil
}

func (f *HumanFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	if f.Quiet {
		return nil
	}

	switch {
	case result.Resumed && result.Received == 0:
		_, _ = fmt.Fprintf(w, "Already complete: %s (%s)\n", result.LocalPath, sizeLabel(result.Size))
	case result.Resumed:
		_, _ = fmt.Fprintf(w, "Resumed: %s -> %s (+%s, %s total)\n",
			result.IDOrName, result.LocalPath, sizeLabel(result.Received), sizeLabel(result.Size))
	case result.LocalPath == "-":
		_, _ = fmt.Fprintf(w, "Downloaded: %s (%s)\n", result.IDOrName, sizeLabel(result.Received))
	default:
		_, _ = fmt.Fprintf(w, "Downloaded: %s -> %s (%s)\n", result.IDOrName, result.LocalPath, sizeLabel(result.Received))
	}
	return nil
}

func (f *HumanFormatter) FormatError(w io.Writer, err error) error {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	return nil
}

func (f *HumanFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	table := newTable(w, "", "Name", "Endpoint", "Token")
	table.AppendBulk(lo.Map(profiles, func(p Profile, _ int) []string {
		return []string{
			lo.Ternary(p.Name == defaultName, "*", ""),
			p.Name,
			p.Endpoint,
			maskSecret(p.Token, showSecrets),
		}
	}))
	table.Render()
	return nil
}

func (f *HumanFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	name := profile.Name
	if isDefault {
		name += " (default)"
	}
	_, _ = fmt.Fprintf(w, "Name:     %s\n", name)
	_, _ = fmt.Fprintf(w, "Endpoint: %s\n", profile.Endpoint)
	_, _ = fmt.Fprintf(w, "Token:    %s\n", maskSecret(profile.Token, showSecrets))
	return nil
}

// JSONFormatter prints indented JSON for scripts.
type JSONFormatter struct{}

func (f *JSONFormatter) FormatList(w io.Writer, result *ferry.ListResult) error {
	return writeJSON(w, result)
}

func (f *JSONFormatter) FormatEvents(w io.Writer, downloadID int64, events []ferry.Event) error {
	return writeJSON(w, struct {
		DownloadID int64         `json:"download_id"`
		Items      []ferry.Event `json:"items"`
	}{downloadID, lo.Ternary(events == nil, []ferry.Event{}, events)})
}

func (f *JSONFormatter) FormatDownload(w io.Writer, result *DownloadResult) error {
	return writeJSON(w, result)
}

func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	out := struct {
		Error   string `json:"error"`
		Status  int    `json:"status,omitempty"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	}{Error: err.Error()}

	if apiErr, ok := lo.ErrorsAs[*APIError](err); ok {
		out.Status = apiErr.StatusCode
		out.Code = apiErr.Code
		out.Message = apiErr.Message
	}
	return writeJSON(w, out)
}

func (f *JSONFormatter) FormatProfileList(w io.Writer, profiles []Profile, defaultName string, showSecrets bool) error {
	out := lo.Map(profiles, func(p Profile, _ int) Profile {
		p.Token = maskSecret(p.Token, showSecrets)
		p.Default = p.Name == defaultName
		return p
	})
	return writeJSON(w, struct {
		Profiles []Profile `json:"profiles"`
	}{out})
}

func (f *JSONFormatter) FormatProfileShow(w io.Writer, profile Profile, isDefault, showSecrets bool) error {
	profile.Token = maskSecret(profile.Token, showSecrets)
	profile.Default = isDefault
	return writeJSON(w, profile)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sizeLabel(n int64) string {
	if n < 0 {
		return "unknown size"
	}
	return humanize.IBytes(uint64(n))
}

// maskSecret shows the first and last four characters of a secret.
func maskSecret(secret string, show bool) string {
	switch {
	case show:
		return secret
	case secret == "":
		return "(not set)"
	case len(secret) <= 8:
		return "********"
	default:
		return secret[:4] + "..." + secret[len(secret)-4:]
	}
}
