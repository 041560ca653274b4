package server

import (
	"net/http"
	"strings"

	packagedomain "github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
	"github.com/gin-gonic/gin"
)

// @Summary      Create Training Package
// @Description  Create a new training package for a client
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        request body packagedomain.CreateRequest true "Create Package Request"
// @Success      200  {object}  packagedomain.TrainingPackage
// @Router       /orgs/{org_id}/packages [post]
func (s *Server) CreatePackage(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var req packagedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.TrainerID = strings.TrimSpace(req.TrainerID)

	resp, err := s.packageSvc.Create(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Training Packages
// @Description  List training packages for the organization
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        client_id   query     string  false  "Client ID"
// @Param        trainer_id  query     string  false  "Trainer ID"
// @Param        active      query     bool    false  "Active"
// @Param        page_token  query     string  false  "Page Token"
// @Param        page_size   query     int     false  "Page Size"
// @Success      200  {object}  []packagedomain.TrainingPackage
// @Router       /orgs/{org_id}/packages [get]
func (s *Server) ListPackages(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var req packagedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.packageSvc.List(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Training Package
// @Description  Get a training package by ID
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Package ID"
// @Success      200  {object}  packagedomain.TrainingPackage
// @Router       /orgs/{org_id}/packages/{id} [get]
func (s *Server) GetPackageByID(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	id, err := packagedomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid package id"))
		return
	}

	resp, err := s.packageSvc.Get(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Package Funding Summary
// @Description  Derive paid total, remaining balance, and unlocked sessions
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Package ID"
// @Success      200  {object}  packagedomain.FundingSummary
// @Router       /orgs/{org_id}/packages/{id}/summary [get]
func (s *Server) GetPackageFundingSummary(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	id, err := packagedomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid package id"))
		return
	}

	resp, err := s.packageSvc.GetFundingSummary(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Deactivate Training Package
// @Description  Deactivate a training package
// @Tags         packages
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Package ID"
// @Success      200  {object}  packagedomain.TrainingPackage
// @Router       /orgs/{org_id}/packages/{id} [delete]
func (s *Server) DeactivatePackage(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	id, err := packagedomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid package id"))
		return
	}

	resp, err := s.packageSvc.Deactivate(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isPackageValidationError(err error) bool {
	switch err {
	case packagedomain.ErrInvalidOrganization,
		packagedomain.ErrInvalidClient,
		packagedomain.ErrInvalidName,
		packagedomain.ErrInvalidTotalValue,
		packagedomain.ErrInvalidTotalSessions,
		packagedomain.ErrInvalidSessionValue,
		packagedomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
