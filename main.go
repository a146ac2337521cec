package main

import (
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"medsupply/m/internal/api"
	"medsupply/m/internal/config"
	"medsupply/m/internal/ledger"
	"medsupply/m/internal/reports"
	"medsupply/m/internal/seed"
	"medsupply/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()

	items, err := store.OpenItems(cfg.DataDir)
	if err != nil {
		log.Fatalf("unable to open item store: %v", err)
	}
	suppliers, err := store.OpenSuppliers(cfg.DataDir)
	if err != nil {
		log.Fatalf("unable to open supplier store: %v", err)
	}
	hospitals, err := store.OpenHospitals(cfg.DataDir)
	if err != nil {
		log.Fatalf("unable to open hospital store: %v", err)
	}
	users, err := store.OpenUsers(cfg.DataDir)
	if err != nil {
		log.Fatalf("unable to open user store: %v", err)
	}
	transactions, err := store.OpenTransactions(cfg.DataDir)
	if err != nil {
		log.Fatalf("unable to open transaction ledger: %v", err)
	}

	seed.EnsureAdmin(users)

	coordinator := ledger.New(items, transactions, hospitals, suppliers)
	builder := &reports.Builder{Items: items, Suppliers: suppliers, Hospitals: hospitals, Transactions: transactions}
	handler := api.New(items, suppliers, hospitals, users, transactions, coordinator, builder, cfg.Secret, cfg.ReportDB)

	log.Printf("MedSupply inventory server starting on :%s", cfg.HTTPPort)
	if err := http.ListenAndServe(":"+cfg.HTTPPort, handler.Router()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
