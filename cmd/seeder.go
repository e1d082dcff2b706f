package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reimbursehq/reimbursement-service/internal/auth"
	employeeDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/employee"
	reimbursementDatamodel "github.com/reimbursehq/reimbursement-service/internal/core/datamodel/reimbursement"
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

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			fmt.Println("Clearing existing data...")
			for _, table := range []string{"request_status_history", "request_attachments", "reimbursement_requests", "employees"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)

		seedEmployees := []employeeDatamodel.Employee{
			{ID: uuid.NewString(), Name: "Dina Pratiwi", Email: "dina@reimbursehq.dev", Role: auth.RoleEmployee, Department: "Engineering"},
			{ID: uuid.NewString(), Name: "Bram Santoso", Email: "bram@reimbursehq.dev", Role: auth.RoleManager, Department: "Engineering"},
			{ID: uuid.NewString(), Name: "Sari Wijaya", Email: "sari@reimbursehq.dev", Role: auth.RoleFinance, Department: "Finance"},
			{ID: uuid.NewString(), Name: "Padil Admin", Email: "admin@reimbursehq.dev", Role: auth.RoleAdmin, Department: "IT"},
		}

		byEmail := make(map[string]string)
		for _, emp := range seedEmployees {
			var existing employeeDatamodel.Employee
			err := db.Where("email = ?", emp.Email).First(&existing).Error
			if err == nil {
				fmt.Printf("employee %s already exists, skipping\n", emp.Email)
				byEmail[emp.Email] = existing.ID
				continue
			}

			emp.PasswordHash = string(hash)
			emp.Active = true
			if err := db.Create(&emp).Error; err != nil {
				log.Fatalf("failed to seed employee %s: %v", emp.Email, err)
			}
			byEmail[emp.Email] = emp.ID
			fmt.Printf("Seeded employee: %s (%s)\n", emp.Email, emp.Role)
		}

		var requestCount int64
		db.Model(&reimbursementDatamodel.Request{}).Count(&requestCount)
		if requestCount > 0 {
			fmt.Println("reimbursement requests already present, skipping sample requests")
			return
		}

		requesterID := byEmail["dina@reimbursehq.dev"]
		sampleRequests := []reimbursementDatamodel.Request{
			{
				ID:              uuid.NewString(),
				RequesterID:     requesterID,
				Title:           "Taxi to client office",
				ExpenseType:     "transport",
				RequestedAmount: decimal.NewFromInt(85000),
				ExpenseDate:     time.Now().AddDate(0, 0, -2),
				Status:          "draft",
				Active:          true,
			},
			{
				ID:              uuid.NewString(),
				RequesterID:     requesterID,
				Title:           "Team lunch with vendor",
				Description:     "Lunch meeting to review the Q3 contract",
				ExpenseType:     "food",
				RequestedAmount: decimal.NewFromInt(450000),
				ExpenseDate:     time.Now().AddDate(0, 0, -7),
				Status:          "pending_approval",
				Active:          true,
			},
		}

		for _, req := range sampleRequests {
			if err := db.Create(&req).Error; err != nil {
				log.Fatalf("failed to seed request %q: %v", req.Title, err)
			}
			fmt.Printf("Seeded request: %s (%s)\n", req.Title, req.Status)
		}

		fmt.Println("Seeding complete. All seeded accounts use password: password")
	},
}
