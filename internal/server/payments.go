package server

import (
	"net/http"
	"strings"

	paymentdomain "github.com/fitdesk/fitdesk/internal/payment/domain"
	packagedomain "github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
	"github.com/gin-gonic/gin"
)

// @Summary      Record Payment
// @Description  Record a partial payment against a training package
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id      path  string                      true  "Package ID"
// @Param        request body  paymentdomain.RecordRequest true  "Record Payment Request"
// @Success      200  {object}  paymentdomain.MutationResult
// @Router       /orgs/{org_id}/packages/{id}/payments [post]
func (s *Server) RecordPayment(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	packageID, err := packagedomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid package id"))
		return
	}

	var req paymentdomain.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Method = strings.TrimSpace(req.Method)
	req.Notes = strings.TrimSpace(req.Notes)
	req.SalesRepID = strings.TrimSpace(req.SalesRepID)
	req.SalesRep2ID = strings.TrimSpace(req.SalesRep2ID)

	resp, err := s.paymentSvc.Record(c.Request.Context(), orgID, packageID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Update Payment
// @Description  Partially update a recorded payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id      path  string                      true  "Payment ID"
// @Param        request body  paymentdomain.UpdateRequest true  "Update Payment Request"
// @Success      200  {object}  paymentdomain.MutationResult
// @Router       /orgs/{org_id}/payments/{id} [patch]
func (s *Server) UpdatePayment(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	paymentID, err := packagedomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payment id"))
		return
	}

	var req paymentdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.Update(c.Request.Context(), orgID, paymentID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Delete Payment
// @Description  Delete a recorded payment
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  paymentdomain.MutationResult
// @Router       /orgs/{org_id}/payments/{id} [delete]
func (s *Server) DeletePayment(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	paymentID, err := packagedomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payment id"))
		return
	}

	resp, err := s.paymentSvc.Delete(c.Request.Context(), orgID, paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Payments
// @Description  List payments for the organization, optionally by package
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        package_id  query     string  false  "Package ID"
// @Param        page_token  query     string  false  "Page Token"
// @Param        page_size   query     int     false  "Page Size"
// @Success      200  {object}  []paymentdomain.PackagePayment
// @Router       /orgs/{org_id}/payments [get]
func (s *Server) ListPayments(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var req paymentdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.List(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isPaymentValidationError(err error) bool {
	switch err {
	case paymentdomain.ErrInvalidOrganization,
		paymentdomain.ErrInvalidPackage,
		paymentdomain.ErrInvalidAmount,
		paymentdomain.ErrInvalidMethod,
		paymentdomain.ErrInvalidPaymentDate,
		paymentdomain.ErrDuplicateAttribution,
		paymentdomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
