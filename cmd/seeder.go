package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/adityamishra28203/healthvault/internal/staff"
	"github.com/adityamishra28203/healthvault/internal/tenant"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlxDB.Close()

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"access_logs", "consent_history", "consents", "hospital_users", "tenant_usage", "tenants"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		now := time.Now()

		seedTenant := tenant.Tenant{
			ID:        "tenant-demo",
			Name:      "Demo Health Network",
			OwnerID:   "user-admin",
			Tier:      tenant.TierProfessional,
			Status:    tenant.StatusActive,
			Features:  tenant.FeaturesFor(tenant.TierProfessional),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seedTenant).Error; err != nil {
			log.Fatalf("failed to seed tenant: %v", err)
		}

		for resource, limit := range tenant.LimitsFor(tenant.TierProfessional) {
			usage := tenant.Usage{TenantID: seedTenant.ID, Resource: resource, Used: 0, Limit: limit}
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&usage).Error; err != nil {
				log.Fatalf("failed to seed usage counter %s: %v", resource, err)
			}
		}
		fmt.Println("Seeded tenant:", seedTenant.Name)

		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)

		users := []staff.HospitalUser{
			{
				ID:           "user-admin",
				HospitalID:   "hospital-central",
				TenantID:     seedTenant.ID,
				Email:        "admin@demohealth.example",
				Name:         "Asha Verma",
				PasswordHash: string(hash),
				Role:         staff.RoleAdmin,
				Status:       staff.StatusActive,
			},
			{
				ID:           "user-doctor",
				HospitalID:   "hospital-central",
				TenantID:     seedTenant.ID,
				Email:        "doctor@demohealth.example",
				Name:         "Rahul Nair",
				PasswordHash: string(hash),
				Role:         staff.RoleDoctor,
				Status:       staff.StatusActive,
				AccessControl: staff.AccessControl{
					AssignedPatients:   []string{"patient-1", "patient-2"},
					MaxDocumentsPerDay: 50,
				},
			},
			{
				ID:           "user-billing",
				HospitalID:   "hospital-central",
				TenantID:     seedTenant.ID,
				Email:        "billing@demohealth.example",
				Name:         "Meera Joshi",
				PasswordHash: string(hash),
				Role:         staff.RoleBillingClerk,
				Status:       staff.StatusActive,
				AccessControl: staff.AccessControl{
					RestrictedHours: true,
				},
			},
			{
				ID:           "user-viewer",
				HospitalID:   "hospital-central",
				TenantID:     seedTenant.ID,
				Email:        "viewer@demohealth.example",
				Name:         "Dev Kapoor",
				PasswordHash: string(hash),
				Role:         staff.RoleViewer,
				Status:       staff.StatusActive,
			},
		}

		for i := range users {
			users[i].CreatedAt = now
			users[i].UpdatedAt = now
			if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&users[i]).Error; err != nil {
				log.Fatalf("failed to seed user %s: %v", users[i].Email, err)
			}
			fmt.Println("Seeded user:", users[i].Email, "role:", users[i].Role)
		}

		fmt.Println("Seeding completed (default password: password)")
	},
}
