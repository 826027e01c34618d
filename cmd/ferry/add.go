package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ferrydl/ferry"
)

var addCmd = &cobra.Command{
	Use:   "add [flags] <file1> [file2] ...",
	Short: "Import files as downloads",
	Long: `Import files into the upload directory and register them as downloads.

Files are copied into the upload directory and identified by their
destination path there. With --url, nothing is copied: an existing
locator (remote URL, s3://bucket/key or local path) is registered
under --name instead.

Examples:
  # Add a single file
  ferry add /path/to/release.zip

  # Add with a destination prefix and category
  ferry add --dest releases/ --category apps /path/to/release.zip

  # Add a directory recursively
  ferry add -r /path/to/assets

  # Protect with a password (prompted, stored hashed)
  ferry add --password-prompt /path/to/private.pdf

  # Restrict with access rules
  ferry add --rules rules.yaml /path/to/members-only.zip

  # Register a remote file
  ferry add --name installer --url https://cdn.example.com/installer.exe`,
	RunE: runAdd,
}

var (
	addDest           string
	addName           string
	addCategory       string
	addPassword       string
	addPasswordPrompt bool
	addRulesFile      string
	addURL            string
	addRecursive      bool
	addNoClobber      bool
	addQuiet          bool
)

func init() {
	addCmd.Flags().StringVarP(&addDest, "dest", "d", "", "destination path prefix in the upload directory")
	addCmd.Flags().StringVar(&addName, "name", "", "download name (single file or --url only; default: destination path)")
	addCmd.Flags().StringVar(&addCategory, "category", "", "download category")
	addCmd.Flags().StringVar(&addPassword, "password", "", "download password (stored hashed)")
	addCmd.Flags().BoolVar(&addPasswordPrompt, "password-prompt", false, "prompt for the download password")
	addCmd.Flags().StringVar(&addRulesFile, "rules", "", "YAML file with access rules")
	addCmd.Flags().StringVar(&addURL, "url", "", "register an existing locator instead of importing files")
	addCmd.Flags().BoolVarP(&addRecursive, "recursive", "r", false, "recursively add directories")
	addCmd.Flags().BoolVarP(&addNoClobber, "no-clobber", "n", false, "skip downloads that already exist instead of overwriting")
	addCmd.Flags().BoolVarP(&addQuiet, "quiet", "q", false, "suppress per-file output")
	addCmd.MarkFlagsMutuallyExclusive("password", "password-prompt")
	rootCmd.AddCommand(addCmd)
}

// fileEntry represents a file to be added with its source and destination paths.
type fileEntry struct {
	sourcePath string
	destPath   string
}

func runAdd(cmd *cobra.Command, args []string) error {
	switch {
	case addURL != "" && len(args) > 0:
		return errors.New("--url cannot be combined with files")
	case addURL != "" && addName == "":
		return errors.New("--url requires --name")
	case addURL == "" && len(args) == 0:
		return errors.New("requires at least one file or --url")
	}

	password, err := readAddPassword()
	if err != nil {
		return err
	}

	rules, err := loadRules(addRulesFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if addURL != "" {
		d, regErr := a.service.Register(ctx, ferry.Download{
			Name:     addName,
			FileURL:  addURL,
			Category: addCategory,
			Password: password,
			Rules:    rules,
		})
		if regErr != nil {
			return fmt.Errorf("register %s: %w", addName, regErr)
		}
		slog.Info("registered", "id", d.ID, "name", d.Name, "locator", d.FileURL)
		return nil
	}

	// Collect files from all arguments
	var files []fileEntry
	for _, arg := range args {
		entries, collectErr := collectFiles(arg, addRecursive, addDest)
		if collectErr != nil {
			return fmt.Errorf("collect files from %s: %w", arg, collectErr)
		}
		files = append(files, entries...)
	}

	if len(files) == 0 {
		slog.Info("no files to add")
		return nil
	}

	if addName != "" && len(files) > 1 {
		return errors.New("--name can only be used with a single file")
	}

	added := 0
	skipped := 0

	for _, entry := range files {
		name := addName
		if name == "" {
			name = entry.destPath
		}

		if addNoClobber {
			if _, getErr := a.service.Get(ctx, name); getErr == nil {
				skipped++
				if !addQuiet {
					slog.Info("skipped (exists)", "name", name)
				}
				continue
			}
		}

		f, openErr := os.Open(entry.sourcePath)
		if openErr != nil {
			return fmt.Errorf("open %s: %w", entry.sourcePath, openErr)
		}

		d, createErr := a.service.Create(ctx, ferry.NewDownload{
			Path:     entry.destPath,
			Name:     name,
			Category: addCategory,
			Password: password,
			Rules:    rules,
		}, f)
		_ = f.Close()

		if createErr != nil {
			return fmt.Errorf("add %s: %w", entry.destPath, createErr)
		}

		added++
		if !addQuiet {
			slog.Info("added", "id", d.ID, "name", d.Name, "path", entry.destPath)
		}
	}

	slog.Info("add complete", "added", added, "skipped", skipped)
	return nil
}

func readAddPassword() (string, error) {
	password := addPassword
	if addPasswordPrompt {
		var err error
		password, err = promptPassword("Download password")
		if err != nil {
			return "", err
		}
	}

	if password == "" {
		return "", nil
	}

	hashed, err := ferry.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hashed, nil
}

func promptPassword(label string) (string, error) {
	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(s string) error {
			if s == "" {
				return errors.New("password cannot be empty")
			}
			return nil
		},
	}

	password, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return password, nil
}

// loadRules reads access rules from a YAML file:
//
//	enabled: true
//	action: allow
//	type: any
//	rules:
//	  - type: user_role
//	    condition: is
//	    value: member
func loadRules(path string) (ferry.ConditionalLogic, error) {
	if path == "" {
		return ferry.ConditionalLogic{}, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // Path is from the command line
	if err != nil {
		return ferry.ConditionalLogic{}, fmt.Errorf("read rules file: %w", err)
	}

	var rules ferry.ConditionalLogic
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return ferry.ConditionalLogic{}, fmt.Errorf("parse rules file: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return ferry.ConditionalLogic{}, err
	}

	return rules, nil
}

// collectFiles gathers files from a path, optionally recursively.
// Returns a list of file entries with source and destination paths.
func collectFiles(path string, recursive bool, destPrefix string) ([]fileEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	// Normalize dest prefix - ensure it ends with / if non-empty
	destPrefix = strings.TrimPrefix(destPrefix, "/")
	if destPrefix != "" && !strings.HasSuffix(destPrefix, "/") {
		destPrefix += "/"
	}

	if !info.IsDir() {
		destPath := destPrefix + filepath.Base(path)
		return []fileEntry{{sourcePath: path, destPath: destPath}}, nil
	}

	if !recursive {
		return nil, fmt.Errorf("%s is a directory (use -r to add recursively)", path)
	}

	var entries []fileEntry
	walkErr := filepath.WalkDir(path, func(walkPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		relPath, relErr := filepath.Rel(path, walkPath)
		if relErr != nil {
			return relErr
		}

		entries = append(entries, fileEntry{
			sourcePath: walkPath,
			destPath:   destPrefix + filepath.ToSlash(relPath),
		})
		return nil
	})

	if walkErr != nil {
		return nil, walkErr
	}

	return entries, nil
}
