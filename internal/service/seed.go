package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/isagip/barangay-dashboard-api/internal/models"
	"github.com/isagip/barangay-dashboard-api/internal/rbac"
	"github.com/isagip/barangay-dashboard-api/internal/repository"
)

// DemoPassword is the password of every seeded account and resident.
const DemoPassword = "pass"

type seedAccount struct {
	username string
	role     rbac.Role
	first    string
	last     string
}

var demoAccounts = []seedAccount{
	{username: "admin", role: rbac.RoleSystemAdmin, first: "System", last: "Administrator"},
	{username: "staff", role: rbac.RoleBarangayStaff, first: "Barangay", last: "Staff"},
	{username: "tv", role: rbac.RoleLiveViewer, first: "Live", last: "Viewer"},
}

// Seed loads demo accounts, the fleet, a sample incident and sample residents
// with pending requests. It does nothing when the admin account already exists.
func Seed(ctx context.Context, store repository.Store, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := store.Accounts().GetByUsername(ctx, "admin"); err == nil {
		logger.Debug("seed skipped, accounts already present")
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check seed state: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	now := time.Now().UTC()

	err = store.WithinTx(ctx, func(tx repository.Store) error {
		for _, a := range demoAccounts {
			account := &models.Account{
				Username:     a.username,
				Email:        a.username + "@isagip.local",
				PasswordHash: string(hash),
				Role:         string(a.role),
				Active:       true,
				Profile:      models.Profile{FirstName: a.first, LastName: a.last},
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := tx.Accounts().Create(ctx, account); err != nil {
				return fmt.Errorf("seed account %s: %w", a.username, err)
			}
		}

		ongoing := &models.Report{
			ID:          fmt.Sprintf("REP-%d", now.Add(-20*time.Minute).UnixMilli()),
			Type:        models.IncidentMedical,
			Description: "Elderly resident with difficulty breathing",
			Status:      models.StatusOngoing,
			Street:      "Block 1, Lot 2",
			Landmark:    "Near the chapel",
			Coordinates: &models.Coordinates{Lat: 14.7338466, Lng: 121.01382136},
			ReportedBy:  "Maria Lee",
			Severity:    models.SeverityHigh,
			CreatedAt:   now.Add(-20 * time.Minute),
		}
		ongoing.Record("Maria Lee", models.ActionCreated, "Medical report filed by Maria Lee", ongoing.CreatedAt)
		ongoing.Record("staff", models.ActionDispatched, "Ambulance 2 dispatched", now.Add(-15*time.Minute))
		ongoing.Record("staff", models.ActionAmbulanceAssigned, "AMB-2 assigned", now.Add(-15*time.Minute))
		ongoing.AssignedVehicleID = "AMB-2"
		ongoing.Attribute("status", "staff", now.Add(-15*time.Minute))
		if err := tx.Reports().Create(ctx, ongoing); err != nil {
			return fmt.Errorf("seed report: %w", err)
		}

		fleet := []models.Ambulance{
			{ID: "AMB-1", Name: "Ambulance 1", Status: models.AmbulanceAvailable},
			{ID: "AMB-2", Name: "Ambulance 2", Status: models.AmbulanceInUse, Location: ongoing.Location(), AssignedReportID: ongoing.ID},
			{ID: "AMB-3", Name: "Ambulance 3", Status: models.AmbulanceMaintenance},
		}
		for i := range fleet {
			fleet[i].UpdatedAt = now
			fleet[i].UpdatedBy = "System"
			if err := tx.Ambulances().Create(ctx, &fleet[i]); err != nil {
				return fmt.Errorf("seed ambulance %s: %w", fleet[i].ID, err)
			}
		}

		residents := []models.Resident{
			{Username: "john_doe", Email: "john@example.com", Profile: models.Profile{FirstName: "John", LastName: "Doe", Contact: "0912345678901", Address: "123 Main St"}},
			{Username: "jane_smith", Email: "jane@example.com", Profile: models.Profile{FirstName: "Jane", LastName: "Smith", Contact: "0923456789012"}},
			{Username: "maria_lee", Email: "maria@example.com", Profile: models.Profile{FirstName: "Maria", LastName: "Lee", Contact: "0934567890123"}},
		}
		for i := range residents {
			residents[i].PasswordHash = string(hash)
			residents[i].Status = models.ResidentActive
			residents[i].CreatedAt = now
			residents[i].UpdatedAt = now
			if err := tx.Residents().Create(ctx, &residents[i]); err != nil {
				return fmt.Errorf("seed resident %s: %w", residents[i].Username, err)
			}
		}

		requests := []models.ReviewRequest{
			{
				Kind:     models.ReviewUpdate,
				Identity: "john_doe",
				Email:    "john@example.com",
				Changes:  map[string]string{"email": "john.new@example.com", "contact": "0911122233334"},
			},
			{
				Kind:         models.ReviewRegistration,
				Identity:     "app_jdoe",
				Email:        "john.doe@app.test",
				PasswordHash: string(hash),
				Changes:      map[string]string{"firstName": "John", "lastName": "Doe", "contact": "0912345678901", "address": "Block 3, Lot 5", "gender": "Male", "birthdate": "1990-04-12"},
			},
			{
				Kind:         models.ReviewRegistration,
				Identity:     "app_mlee",
				Email:        "maria.lee@app.test",
				PasswordHash: string(hash),
				Changes:      map[string]string{"firstName": "Maria", "lastName": "Lee", "suffix": "Jr.", "contact": "0998765432100", "address": "Block 1, Lot 2", "gender": "Female", "birthdate": "1994-09-30"},
			},
		}
		for i := range requests {
			requests[i].RequestedAt = now.Add(time.Duration(i) * time.Second)
			requests[i].Status = models.ReviewPending
			if err := tx.Registrations().Create(ctx, &requests[i]); err != nil {
				return fmt.Errorf("seed request %s: %w", requests[i].Identity, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("demo data seeded", zap.Int("accounts", len(demoAccounts)))
	return nil
}
