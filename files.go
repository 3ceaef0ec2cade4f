package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/healthdrive/healthdrive/internal/gdrive"
	"github.com/healthdrive/healthdrive/internal/patient"
	"github.com/healthdrive/healthdrive/internal/report"
)

// downloadFilePerms keeps fetched medical documents private to the owner.
const downloadFilePerms = 0o600

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <folder>",
		Short: "List the files in a Google Drive folder found by name",
		Long: `Resolve a Drive folder by its exact name and list its files.

The name must match exactly one folder; when several folders share the name,
their IDs are printed and nothing is listed.`,
		Args: cobra.ExactArgs(1),
		RunE: runLs,
	}

	cmd.Flags().Int64("page-size", 0, "files per page (default: drive.page_size)")
	cmd.Flags().Bool("all", false, "follow continuation pages until the listing is complete")

	return cmd
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <patient-id> <document-type>",
		Short: "Search Drive for a patient's documents of one type",
		Long: `Search Google Drive for files whose names contain both the patient ID and
the document type, e.g. "healthdrive search P001 LAB".`,
		Args: cobra.ExactArgs(2),
		RunE: runSearch,
	}

	cmd.Flags().Bool("latest", false, "return only the most recently modified match")
	cmd.Flags().Int64("page-size", 0, "maximum results (default: drive.page_size)")

	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <file-id> [local-path]",
		Short: "Download a Drive file by ID to stdout or a local file",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGet,
	}
}

// fileJSON is the JSON schema for ls and search output.
type fileJSON struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MIMEType    string    `json:"mime_type"`
	Size        *int64    `json:"size,omitempty"`
	Modified    time.Time `json:"modified,omitzero"`
	MD5Checksum string    `json:"md5_checksum,omitempty"`
	WebViewLink string    `json:"web_view_link,omitempty"`
}

func toFileJSON(objs []gdrive.Object) []fileJSON {
	out := make([]fileJSON, 0, len(objs))

	for _, o := range objs {
		f := fileJSON{
			ID:          o.ID,
			Name:        o.Name,
			MIMEType:    o.MIMEType,
			Modified:    o.ModifiedAt,
			MD5Checksum: o.MD5Checksum,
			WebViewLink: o.WebViewLink,
		}

		if o.HasSize {
			size := o.Size
			f.Size = &size
		}

		out = append(out, f)
	}

	return out
}

func objectRows(objs []gdrive.Object) [][]string {
	rows := make([][]string, 0, len(objs))

	for _, o := range objs {
		rows = append(rows, []string{o.Name, report.Size(o), report.Timestamp(o.ModifiedAt), o.ID})
	}

	return rows
}

var objectHeaders = []string{"NAME", "SIZE", "MODIFIED", "ID"}

func pageSizeFlag(cmd *cobra.Command, fallback int64) int64 {
	n, err := cmd.Flags().GetInt64("page-size")
	if err != nil || n <= 0 {
		return fallback
	}

	return n
}

func runLs(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	client, err := driveSession(ctx, cc)
	if err != nil {
		return err
	}

	folder, objs, err := client.ListFolder(ctx, args[0], gdrive.ListOptions{
		PageSize: pageSizeFlag(cmd, cc.Cfg.Drive.PageSize),
		All:      all,
	})
	if err != nil {
		return reportedError{err}
	}

	cc.Logger.Debug("listed folder",
		slog.String("folder", folder.Name),
		slog.String("folder_id", folder.ID),
		slog.Int("count", len(objs)),
	)

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, toFileJSON(objs))
	}

	if len(objs) == 0 {
		cc.Statusf("Folder %s (%s) is empty.\n", folder.Name, folder.ID)
		return nil
	}

	printTable(w, objectHeaders, objectRows(objs))

	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}

	id := patient.NormalizeID(args[0])
	docType := strings.TrimSpace(args[1])

	if id == "" || docType == "" {
		return fmt.Errorf("patient ID and document type must not be empty")
	}

	client, err := driveSession(ctx, cc)
	if err != nil {
		return err
	}

	objs, err := client.Search(ctx,
		gdrive.Query{NameContains: []string{id, docType}, Latest: latest},
		gdrive.ListOptions{PageSize: pageSizeFlag(cmd, cc.Cfg.Drive.PageSize)},
	)
	if err != nil {
		return reportedError{err}
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, toFileJSON(objs))
	}

	if len(objs) == 0 {
		fmt.Fprintln(w, report.Documents(id, docType, nil))
		return nil
	}

	printTable(w, objectHeaders, objectRows(objs))

	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := shutdownContext(cmd.Context(), cc.Logger)

	client, err := driveSession(ctx, cc)
	if err != nil {
		return err
	}

	start := time.Now()

	content, err := client.FetchContent(ctx, args[0])
	if err != nil {
		return reportedError{err}
	}

	cc.Logger.Debug("fetched content",
		slog.String("file_id", args[0]),
		slog.Int("bytes", len(content)),
		slog.Duration("elapsed", time.Since(start)),
	)

	if len(args) < 2 || args[1] == "-" {
		_, err := cmd.OutOrStdout().Write(content)
		return err
	}

	if err := os.WriteFile(args[1], content, downloadFilePerms); err != nil {
		return fmt.Errorf("writing %s: %w", args[1], err)
	}

	cc.Statusf("Downloaded %s (%s)\n", args[1], humanize.IBytes(uint64(len(content))))

	return nil
}
