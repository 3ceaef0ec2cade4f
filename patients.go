package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/healthdrive/healthdrive/internal/config"
	"github.com/healthdrive/healthdrive/internal/patient"
	"github.com/healthdrive/healthdrive/internal/report"
)

const dataDirPerms = 0o700

func newPatientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patient <patient-id> [department]",
		Short: "Show a patient's record or department history",
		Long: `Show a patient's basic information and the departments they have records
in. With a department name (case-insensitive), show that department's last
visit, diagnosis, and current medications instead.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPatient,
	}
}

// openPatients returns the configured patient repository and a function
// releasing it. The sqlite backend is seeded with the demo patients when
// empty.
func openPatients(ctx context.Context, cfg config.PatientsConfig, logger *slog.Logger) (patient.Repository, func() error, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), dataDirPerms); err != nil {
			return nil, nil, fmt.Errorf("creating database directory: %w", err)
		}

		repo, err := patient.OpenSQLite(ctx, cfg.DBPath, logger)
		if err != nil {
			return nil, nil, err
		}

		if _, err := repo.Seed(ctx, patient.DemoPatients()); err != nil {
			repo.Close()
			return nil, nil, err
		}

		return repo, repo.Close, nil
	default:
		return patient.NewMemoryRepository(patient.DemoPatients()...), func() error { return nil }, nil
	}
}

// patientJSON is the JSON schema for `patient --json`.
type patientJSON struct {
	ID          string                   `json:"id"`
	Name        string                   `json:"name"`
	Age         int                      `json:"age"`
	Departments map[string]departmentOut `json:"departments"`
}

type departmentOut struct {
	LastVisit   string   `json:"last_visit"`
	Diagnosis   string   `json:"diagnosis"`
	Medications []string `json:"medications"`
}

func runPatient(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	ctx := cmd.Context()

	repo, closeRepo, err := openPatients(ctx, cc.Cfg.Patients, cc.Logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	p, err := repo.Get(ctx, args[0])
	if errors.Is(err, patient.ErrNotFound) {
		return reportedError{err}
	}

	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if len(args) == 2 {
		name, rec, err := p.Department(args[1])
		if err != nil {
			return errors.New(report.NoDepartmentRecords(args[1]))
		}

		if cc.Flags.JSON {
			return printJSON(w, patientJSON{
				ID: p.ID, Name: p.Name, Age: p.Age,
				Departments: map[string]departmentOut{name: toDepartmentOut(rec)},
			})
		}

		fmt.Fprintln(w, report.DepartmentHistory(p, args[1], rec))

		return nil
	}

	if cc.Flags.JSON {
		out := patientJSON{ID: p.ID, Name: p.Name, Age: p.Age, Departments: map[string]departmentOut{}}
		for name, rec := range p.Departments {
			out.Departments[name] = toDepartmentOut(rec)
		}

		return printJSON(w, out)
	}

	fmt.Fprintln(w, report.PatientInfo(p))
	fmt.Fprintln(w, report.Departments(p))

	return nil
}

func toDepartmentOut(rec patient.DepartmentRecord) departmentOut {
	return departmentOut{
		LastVisit:   rec.LastVisit.Format(time.DateOnly),
		Diagnosis:   rec.Diagnosis,
		Medications: rec.Medications,
	}
}
