package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/healthdrive/healthdrive/internal/notes"
	"github.com/healthdrive/healthdrive/internal/report"
)

func newNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Add and read sticky notes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <message>...",
		Short: "Append a note",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runNotesAdd,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print all notes",
		Args:  cobra.NoArgs,
		RunE:  runNotesList,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "latest",
		Short: "Print the most recent note",
		Args:  cobra.NoArgs,
		RunE:  runNotesLatest,
	})

	return cmd
}

func runNotesAdd(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	store, err := notes.Open(cc.Cfg.Notes.Path)
	if err != nil {
		return err
	}

	if err := store.Add(strings.Join(args, " ")); err != nil {
		return reportedError{err}
	}

	cc.Statusf("%s\n", report.NoteSaved)

	return nil
}

func runNotesList(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	store, err := notes.Open(cc.Cfg.Notes.Path)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	lines, err := store.Lines()
	if err != nil && !errors.Is(err, notes.ErrNoNotes) {
		return err
	}

	if cc.Flags.JSON {
		if lines == nil {
			lines = []string{}
		}

		return printJSON(w, lines)
	}

	if len(lines) == 0 {
		fmt.Fprintln(w, report.NoNotes)
		return nil
	}

	for _, line := range lines {
		fmt.Fprintln(w, line)
	}

	return nil
}

func runNotesLatest(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	store, err := notes.Open(cc.Cfg.Notes.Path)
	if err != nil {
		return err
	}

	latest, err := store.Latest()
	if errors.Is(err, notes.ErrNoNotes) {
		fmt.Fprintln(cmd.OutOrStdout(), report.NoNotes)
		return nil
	}

	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), latest)

	return nil
}
