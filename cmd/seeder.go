package cmd

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with demo accounts for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initGormDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		accounts := []struct {
			Email string
			Name  string
		}{
			{"fadhil@mail.com", "Fadhil"},
			{"padil@mail.com", "Padil"},
		}

		if clearData {
			for _, a := range accounts {
				if err := db.Exec("DELETE FROM ipn_logs WHERE account_id IN (SELECT id FROM accounts WHERE email = ?)", a.Email).Error; err != nil {
					log.Fatalf("failed to clear ipn logs for %s: %v", a.Email, err)
				}
				if err := db.Exec("DELETE FROM accounts WHERE email = ?", a.Email).Error; err != nil {
					log.Fatalf("failed to clear account %s: %v", a.Email, err)
				}
			}
			fmt.Println("Cleared demo accounts")
		}

		password := "password"
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		for _, a := range accounts {
			var exists int
			row := db.Raw("SELECT 1 FROM accounts WHERE email = ?", a.Email).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Println("account already exists:", a.Email)
				continue
			}

			if err := db.Exec(
				"INSERT INTO accounts (id, email, name, password_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, ?, false, now(), now())",
				uuid.NewString(), a.Email, a.Name, string(hash),
			).Error; err != nil {
				log.Fatalf("failed to insert account %s: %v", a.Email, err)
			}
			fmt.Println("Seeded inactive account:", a.Email)
		}

		fmt.Println("Demo accounts seeded successfully; log in with password:", password)
	},
}
