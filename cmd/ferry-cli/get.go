package main

import (
	"errors"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry/clientcli"
)

var (
	getOutput   string
	getStdout   bool
	getResume   bool
	getPassword string
	getAsk      bool
)

var getCmd = &cobra.Command{
	Use:     "get <id-or-name> [local-path]",
	Aliases: []string{"download"},
	Short:   "Download a file",
	Long: `Download a file by ID or name.

Without a local path the file name sent by the server is used. --resume
continues a partial file with a Range request. Protected downloads take
--password, or --ask to be prompted when the server requires one.

Examples:
  ferry-cli get release-1.2.zip
  ferry-cli get 42 ./out/release.zip --resume
  ferry-cli get manual --ask
  ferry-cli get notes.txt --stdout | less`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getOutput, "output", "o", "", "output file path")
	getCmd.Flags().BoolVar(&getStdout, "stdout", false, "write to stdout")
	getCmd.Flags().BoolVarP(&getResume, "resume", "r", false, "continue a partial file")
	getCmd.Flags().StringVar(&getPassword, "password", "", "download password")
	getCmd.Flags().BoolVar(&getAsk, "ask", false, "prompt for the password when one is required")
}

func runGet(cmd *cobra.Command, args []string) error {
	opts := clientcli.DownloadOptions{
		IDOrName: args[0],
		Password: getPassword,
		Resume:   getResume,
	}
	if len(args) > 1 {
		opts.LocalPath = args[1]
	}
	if getOutput != "" {
		opts.LocalPath = getOutput
	}
	if getStdout {
		opts.LocalPath = "-"
		opts.Writer = os.Stdout
	}

	// Interrupts cancel through the command context.
	client, err := getClient(clientcli.WithTimeout(0))
	if err != nil {
		return err
	}

	result, err := client.Download(cmd.Context(), opts)
	if getAsk && (errors.Is(err, clientcli.ErrPasswordRequired) || errors.Is(err, clientcli.ErrIncorrectPassword)) {
		prompt := promptui.Prompt{Label: "Password", Mask: '*'}
		if opts.Password, err = prompt.Run(); err != nil {
			return err
		}
		result, err = client.Download(cmd.Context(), opts)
	}
	if err != nil {
		return err
	}

	// Keep stdout clean for the file contents.
	out := os.Stdout
	if opts.LocalPath == "-" {
		out = os.Stderr
	}
	return getFormatter().FormatDownload(out, result)
}
