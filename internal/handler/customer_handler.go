package handler

import (
	"net/http"

	"billing/internal/middleware"
	"billing/internal/service"
	"billing/pkg/pagination"
	"billing/pkg/response"

	"github.com/gin-gonic/gin"
)

type CustomerHandler struct {
	customerService service.CustomerService
	paymentService  service.PaymentService
}

func NewCustomerHandler(customerService service.CustomerService, paymentService service.PaymentService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService, paymentService: paymentService}
}

func (h *CustomerHandler) RegisterRoutes(router *gin.RouterGroup) {
	customers := router.Group("/api/customers")
	{
		customers.GET("", h.ListCustomers)
		customers.POST("", h.CreateCustomer)
		customers.GET("/:id/outstanding", h.GetOutstanding)
		customers.POST("/:id/payments", h.AllocatePayment)
		customers.POST("/:id/payments/preview", h.PreviewAllocation)
	}
}

// ListCustomers returns paginated customers with an optional search
// @Summary      List customers
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        search  query     string  false  "Search by name, phone, email"
// @Success      200     {object}  response.Response{data=[]service.CustomerResponse}
// @Router       /api/customers [get]
func (h *CustomerHandler) ListCustomers(c *gin.Context) {
	p := pagination.Parse(c)

	customers, total, err := h.customerService.GetCustomers(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, customers, p.Page, p.Limit, total))
}

// CreateCustomer creates a new customer
// @Summary      Create customer
// @Tags         customers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateCustomerRequest  true  "Customer payload"
// @Success      201  {object}  response.Response{data=service.CustomerResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/customers [post]
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req service.CreateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer, err := h.customerService.CreateCustomer(c.Request.Context(), middleware.StaffID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, customer))
}

// GetOutstanding lists the customer's collectible invoices in allocation order
// @Summary      Customer outstanding
// @Tags         customers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  response.Response{data=service.OutstandingResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/customers/{id}/outstanding [get]
func (h *CustomerHandler) GetOutstanding(c *gin.Context) {
	outstanding, err := h.paymentService.CustomerOutstanding(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, outstanding))
}

// AllocatePayment records a lump sum and applies it oldest invoice first
// @Summary      Allocate customer payment
// @Description  Money left after every open invoice is retired is reported as unapplied and not stored.
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                          true  "Customer ID"
// @Param        payload  body  service.CustomerPaymentRequest  true  "Payment payload"
// @Success      201  {object}  response.Response{data=service.AllocationResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Failure      422  {object}  response.Response
// @Router       /api/customers/{id}/payments [post]
func (h *CustomerHandler) AllocatePayment(c *gin.Context) {
	var req service.CustomerPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.AllocateCustomerPayment(c.Request.Context(), c.Param("id"), middleware.StaffID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// PreviewAllocation shows how a payment would be applied without saving it
// @Summary      Preview customer payment allocation
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                          true  "Customer ID"
// @Param        payload  body  service.CustomerPaymentRequest  true  "Payment payload"
// @Success      200  {object}  response.Response{data=service.AllocationResponse}
// @Failure      400  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/customers/{id}/payments/preview [post]
func (h *CustomerHandler) PreviewAllocation(c *gin.Context) {
	var req service.CustomerPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.paymentService.PreviewAllocation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
