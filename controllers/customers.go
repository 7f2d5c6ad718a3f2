package controllers

import (
	"net/http"
	"strings"

	dbpkg "valeria/db"
	"valeria/models"
	"valeria/tools"

	"github.com/gin-gonic/gin"
)

// GET /api/customers
func GetCustomers(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	q := db.Where("client_id = ?", client.ID)
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		q = q.Where("phone_number LIKE ? OR full_name LIKE ?", like, like)
	}

	var customers []models.Customer
	if err := q.Order("id desc").Find(&customers).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"customers": customers})
}

// GET /api/customers/:id
func GetCustomerByID(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var customer models.Customer
	if err := db.Where("id = ? AND client_id = ?", id, client.ID).First(&customer).Error; err != nil {
		RespondError(c, "customer não encontrado", http.StatusNotFound)
		return
	}

	RespondSuccess(c, gin.H{"customer": customer})
}

// POST /api/customers
func CreateCustomer(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	customer := models.Customer{}
	if err := c.Bind(&customer); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	phone, err := tools.NormalizePhone(customer.PhoneNumber)
	if err != nil {
		RespondError(c, "phone_number inválido", http.StatusBadRequest)
		return
	}

	customer.ID = 0
	customer.ClientID = client.ID
	customer.PhoneNumber = phone

	var existing models.Customer
	if err := db.Where("client_id = ? AND phone_number = ?", client.ID, phone).
		First(&existing).Error; err == nil {
		RespondError(c, "customer já existe", http.StatusBadRequest)
		return
	}

	if err := db.Create(&customer).Error; err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	RespondSuccess(c, gin.H{"customer": customer})
}

type updateCustomerReq struct {
	FullName *string `json:"full_name"`
	Data     *string `json:"data"`
}

// PUT /api/customers/:id
// O telefone é a chave natural dentro do tenant e não muda por aqui.
func UpdateCustomer(c *gin.Context) {
	client, ok := GetClientLogged(c)
	if !ok {
		RespondError(c, "unauthorized", http.StatusUnauthorized)
		return
	}

	id, ok := ParamID(c, "id")
	if !ok {
		return
	}

	db := dbpkg.DBInstance(c)
	if db == nil {
		RespondError(c, "db não configurado no contexto", http.StatusInternalServerError)
		return
	}

	var customer models.Customer
	if err := db.Where("id = ? AND client_id = ?", id, client.ID).First(&customer).Error; err != nil {
		RespondError(c, "customer não encontrado", http.StatusNotFound)
		return
	}

	var req updateCustomerReq
	if err := c.Bind(&req); err != nil {
		RespondError(c, err.Error(), http.StatusBadRequest)
		return
	}

	updates := map[string]any{}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Data != nil {
		updates["data"] = *req.Data
	}

	if len(updates) > 0 {
		if err := db.Model(&models.Customer{}).Where("id = ?", customer.ID).Updates(updates).Error; err != nil {
			RespondError(c, err.Error(), http.StatusBadRequest)
			return
		}
	}

	RespondSuccess(c, true)
}
