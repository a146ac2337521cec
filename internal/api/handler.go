package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"medsupply/m/domain"
	"medsupply/m/internal/ledger"
	"medsupply/m/internal/reports"
	"medsupply/m/internal/store"
)

type ctxKey string

const (
	ctxUserID   ctxKey = "userID"
	ctxUsername ctxKey = "username"
	ctxRole     ctxKey = "role"
)

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	items        *store.ItemStore
	suppliers    *store.SupplierStore
	hospitals    *store.HospitalStore
	users        *store.UserStore
	transactions *store.TransactionStore
	coordinator  *ledger.Coordinator
	reports      *reports.Builder
	secret       string
	reportDB     string
}

// New constructs a Handler.
func New(items *store.ItemStore, suppliers *store.SupplierStore, hospitals *store.HospitalStore,
	users *store.UserStore, transactions *store.TransactionStore, coordinator *ledger.Coordinator,
	builder *reports.Builder, secret, reportDB string) *Handler {
	return &Handler{
		items:        items,
		suppliers:    suppliers,
		hospitals:    hospitals,
		users:        users,
		transactions: transactions,
		coordinator:  coordinator,
		reports:      builder,
		secret:       secret,
		reportDB:     reportDB,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/register", h.register)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/items", func(r chi.Router) {
			r.Get("/", h.listItems)
			r.Get("/names", h.itemNames)
			r.Get("/{code}", h.getItem)
			r.Post("/", h.createItem)
			r.Put("/{code}", h.updateItem)
			r.Delete("/{code}", h.deleteItem)
		})

		pr.Route("/suppliers", func(r chi.Router) {
			r.Get("/", h.listSuppliers)
			r.Get("/names", h.supplierNames)
			r.Get("/{code}", h.getSupplier)
			r.Post("/", h.createSupplier)
			r.Put("/{code}", h.updateSupplier)
			r.Delete("/{code}", h.deleteSupplier)
		})

		pr.Route("/hospitals", func(r chi.Router) {
			r.Get("/", h.listHospitals)
			r.Get("/names", h.hospitalNames)
			r.Get("/{code}", h.getHospital)
			r.Post("/", h.createHospital)
			r.Put("/{code}", h.updateHospital)
			r.Delete("/{code}", h.deleteHospital)
		})

		pr.Route("/users", func(r chi.Router) {
			r.Get("/", h.listUsers)
			r.Put("/{username}", h.updateUser)
			r.Delete("/{username}", h.deleteUser)
		})

		pr.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.listTransactions)
			r.Post("/", h.submitTransaction)
			r.Post("/reconcile", h.reconcile)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.reportSummary)
			r.Post("/export", h.reportExport)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(u domain.User) (string, error) {
	claims := authClaims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxUsername, claims.Username)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role := r.Context().Value(ctxRole)
	if role == nil {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	current := role.(string)
	for _, allowedRole := range allowed {
		if current == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

// Auth handlers

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := h.generateToken(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to generate token")
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.users.Add(domain.User{
		Name:     req.Name,
		Username: req.Username,
		Role:     req.Role,
		Email:    req.Email,
		Phone:    req.Phone,
		Active:   true,
	}, req.Password)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Item handlers

type itemRequest struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	SupplierCode string `json:"supplier_code"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.items.List())
}

func (h *Handler) itemNames(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.items.Names())
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.FindByCode(chi.URLParam(r, "code"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	item := domain.Item{Code: req.Code, Name: req.Name, Quantity: req.Quantity, SupplierCode: req.SupplierCode}
	if err := h.items.Add(item); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := chi.URLParam(r, "code")
	item := domain.Item{Name: req.Name, Quantity: req.Quantity, SupplierCode: req.SupplierCode}
	if err := h.items.Update(code, item); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	if err := h.items.Delete(chi.URLParam(r, "code")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Supplier handlers

type supplierRequest struct {
	Code   string                `json:"code"`
	Name   string                `json:"name"`
	Active bool                  `json:"active"`
	Items  []domain.SupplierItem `json:"items"`
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.suppliers.List())
}

func (h *Handler) supplierNames(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.suppliers.Names())
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	sup, err := h.suppliers.FindByCode(chi.URLParam(r, "code"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sup)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req supplierRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sup := domain.Supplier{Code: req.Code, Name: req.Name, Active: req.Active, Items: req.Items}
	if err := h.suppliers.Add(sup); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sup)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req supplierRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := chi.URLParam(r, "code")
	sup := domain.Supplier{Name: req.Name, Active: req.Active, Items: req.Items}
	if err := h.suppliers.Update(code, sup); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	if err := h.suppliers.Delete(chi.URLParam(r, "code")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Hospital handlers

type hospitalRequest struct {
	Code     string         `json:"code"`
	Name     string         `json:"name"`
	Received map[string]int `json:"received"`
	Active   bool           `json:"active"`
}

func (h *Handler) listHospitals(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.hospitals.List())
}

func (h *Handler) hospitalNames(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.hospitals.Names())
}

func (h *Handler) getHospital(w http.ResponseWriter, r *http.Request) {
	hosp, err := h.hospitals.FindByCode(chi.URLParam(r, "code"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, hosp)
}

func (h *Handler) createHospital(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req hospitalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hosp := domain.Hospital{Code: req.Code, Name: req.Name, Received: req.Received, Active: req.Active}
	if hosp.Received == nil {
		hosp.Received = make(map[string]int)
	}
	if err := h.hospitals.Add(hosp); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, hosp)
}

func (h *Handler) updateHospital(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req hospitalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.hospitals.Update(chi.URLParam(r, "code"), req.Name, req.Active); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteHospital(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	if err := h.hospitals.Delete(chi.URLParam(r, "code")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// User handlers

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	respondJSON(w, http.StatusOK, h.users.List())
}

type userUpdateRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Active   bool   `json:"active"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req userUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	username := chi.URLParam(r, "username")
	updated := domain.User{
		Name:     req.Name,
		Username: req.Username,
		Role:     req.Role,
		Email:    req.Email,
		Phone:    req.Phone,
		Active:   req.Active,
	}
	if err := h.users.Update(username, updated, req.Password); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	if err := h.users.Delete(chi.URLParam(r, "username")); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Transaction handlers

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	itemCode := r.URL.Query().Get("item")
	var out []domain.Transaction
	for _, tx := range h.transactions.List() {
		if direction != "" && string(tx.Direction) != direction {
			continue
		}
		if itemCode != "" && tx.ItemCode != itemCode {
			continue
		}
		out = append(out, tx)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) submitTransaction(w http.ResponseWriter, r *http.Request) {
	var req ledger.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	tx, err := h.coordinator.Submit(req)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	repair := r.URL.Query().Get("repair") == "true"
	report, err := h.coordinator.Reconcile(repair)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Report handlers

func (h *Handler) reportSummary(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.reports.Summary())
}

func (h *Handler) reportExport(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	rows, err := h.reports.Export(h.reportDB)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to export report database")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "exported", "path": h.reportDB, "transactions": rows})
}

// Helpers

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps the store error taxonomy to HTTP statuses.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrIntegrity):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
