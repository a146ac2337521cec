// Package seed bootstraps the default system administrator so a
// fresh deployment can always log in.
package seed

import (
	"errors"
	"log"
	"os"

	"medsupply/m/domain"
	"medsupply/m/internal/store"
)

// EnsureAdmin creates the non-editable system admin account when no
// user by that name exists. The password comes from ADMIN_PASSWORD,
// defaulting to "admin" for local development.
func EnsureAdmin(users *store.UserStore) {
	if _, err := users.ByUsername("admin"); err == nil {
		return
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
		log.Printf("ADMIN_PASSWORD not set, using default admin credentials")
	}
	admin := domain.User{
		Name:     "System Administrator",
		Username: "admin",
		Role:     domain.RoleAdmin,
		Email:    "admin@medsupply.local",
		Phone:    "0",
		Active:   true,
		System:   true,
	}
	if _, err := users.Add(admin, password); err != nil && !errors.Is(err, store.ErrConflict) {
		log.Printf("unable to seed admin account: %v", err)
		return
	}
	log.Printf("seeded system admin account")
}
