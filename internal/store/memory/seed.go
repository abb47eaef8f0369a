package memory

import (
	"context"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/store"

	"golang.org/x/crypto/bcrypt"
)

const (
	SeedAdminUsername = "admin"
	SeedAdminPassword = "admin123"
)

var seedCategories = []core.Category{
	{Name: "Ventas", Color: "#22c55e", Type: core.Income},
	{Name: "Servicios", Color: "#3b82f6", Type: core.Income},
	{Name: "Nómina", Color: "#ef4444", Type: core.Expense},
	{Name: "Suministros", Color: "#f97316", Type: core.Expense},
	{Name: "Alquiler", Color: "#a855f7", Type: core.Expense},
	{Name: "Transporte", Color: "#eab308", Type: core.Expense},
	{Name: "Impuestos", Color: "#64748b", Type: core.Expense},
}

// NewSeeded returns a store holding the default admin user, the default
// categories and two demo accounts owned by the admin.
func NewSeeded() (*Store, error) {
	s := New()
	if err := s.Seed(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Seed inserts the default rows.
func (s *Store) Seed(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(SeedAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	return s.Atomic(ctx, func(tx store.Store) error {
		admin, err := tx.CreateUser(ctx, core.User{
			Username:     SeedAdminUsername,
			Email:        "admin@example.com",
			PasswordHash: string(hash),
			FullName:     "Administrador",
			Role:         core.RoleAdmin,
		})
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		for _, c := range seedCategories {
			if _, err := tx.CreateCategory(ctx, c); err != nil {
				return fmt.Errorf("seed category %s: %w", c.Name, err)
			}
		}
		accounts := []core.Account{
			{
				Name:          "Cuenta Corriente",
				Type:          core.Checking,
				Balance:       core.MustParseMoney("15000.00"),
				BankName:      "Banco Nacional",
				AccountNumber: "****1234",
				UserID:        admin.ID,
			},
			{
				Name:     "Préstamo Empresarial",
				Type:     core.Loan,
				Balance:  core.MustParseMoney("50000.00"),
				BankName: "Banco Nacional",
				UserID:   admin.ID,
			},
		}
		for _, a := range accounts {
			if _, err := tx.CreateAccount(ctx, a); err != nil {
				return fmt.Errorf("seed account %s: %w", a.Name, err)
			}
		}
		return nil
	})
}
