package main

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"studyspace/pkg/models"
)

const (
	demoLibraryID = "0b1f6c1e-2f6a-4c1e-9a43-6f1d2a7c0001"
	demoBranchID  = "0b1f6c1e-2f6a-4c1e-9a43-6f1d2a7c0002"
	demoPlanID    = "0b1f6c1e-2f6a-4c1e-9a43-6f1d2a7c0003"
	demoStudentID = "0b1f6c1e-2f6a-4c1e-9a43-6f1d2a7c0004"
)

// seedDemoData inserts one library with a branch, plan, student and a few seats
// and lockers. Existing rows are left alone.
func seedDemoData(db *gorm.DB, log *slog.Logger) error {
	records := []interface{}{
		&models.Library{ID: demoLibraryID, Name: "Demo Study Library", City: "Pune"},
		&models.Branch{ID: demoBranchID, LibraryID: demoLibraryID, Name: "Main Hall"},
		&models.Plan{ID: demoPlanID, LibraryID: demoLibraryID, Name: "Monthly", DurationDays: 30, PriceCents: 120000},
		&models.Student{ID: demoStudentID, LibraryID: demoLibraryID, BranchID: demoBranchID, Username: "demo", Name: "Demo Student"},
	}
	for i := 1; i <= 10; i++ {
		records = append(records, &models.Seat{
			ID:        fmt.Sprintf("0b1f6c1e-2f6a-4c1e-9a43-6f1d2a7c1%03d", i),
			LibraryID: demoLibraryID,
			BranchID:  demoBranchID,
			Number:    fmt.Sprintf("S%d", i),
			IsActive:  true,
		})
	}
	for i := 1; i <= 4; i++ {
		records = append(records, &models.Locker{
			ID:        fmt.Sprintf("0b1f6c1e-2f6a-4c1e-9a43-6f1d2a7c2%03d", i),
			LibraryID: demoLibraryID,
			BranchID:  demoBranchID,
			Number:    fmt.Sprintf("L%d", i),
			IsActive:  true,
		})
	}

	for _, rec := range records {
		if err := db.Where(rec).FirstOrCreate(rec).Error; err != nil {
			return fmt.Errorf("seed %T: %w", rec, err)
		}
	}
	log.Info("demo data seeded", "records", len(records))
	return nil
}
