package server

import (
	"net/http"
	"strings"

	sessiondomain "github.com/fitdesk/fitdesk/internal/session/domain"
	packagedomain "github.com/fitdesk/fitdesk/internal/trainingpackage/domain"
	"github.com/gin-gonic/gin"
)

// @Summary      Log Session
// @Description  Log a training session against a package
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        request body sessiondomain.LogRequest true "Log Session Request"
// @Success      200  {object}  sessiondomain.TrainingSession
// @Router       /orgs/{org_id}/sessions [post]
func (s *Server) LogSession(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var req sessiondomain.LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PackageID = strings.TrimSpace(req.PackageID)
	req.TrainerID = strings.TrimSpace(req.TrainerID)
	req.Notes = strings.TrimSpace(req.Notes)

	resp, err := s.sessionSvc.Log(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Cancel Session
// @Description  Cancel a logged session so it no longer consumes entitlement
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  sessiondomain.TrainingSession
// @Router       /orgs/{org_id}/sessions/{id}/cancel [post]
func (s *Server) CancelSession(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	id, err := packagedomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid session id"))
		return
	}

	resp, err := s.sessionSvc.Cancel(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Validate Session
// @Description  Mark a session as client-confirmed for commission settlement
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  sessiondomain.TrainingSession
// @Router       /orgs/{org_id}/sessions/{id}/validate [post]
func (s *Server) ValidateSession(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}
	id, err := packagedomain.ParseID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid session id"))
		return
	}

	resp, err := s.sessionSvc.Validate(c.Request.Context(), orgID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Sessions
// @Description  List logged sessions for the organization
// @Tags         sessions
// @Accept       json
// @Produce      json
// @Param        package_id  query     string  false  "Package ID"
// @Param        trainer_id  query     string  false  "Trainer ID"
// @Param        page_token  query     string  false  "Page Token"
// @Param        page_size   query     int     false  "Page Size"
// @Success      200  {object}  []sessiondomain.TrainingSession
// @Router       /orgs/{org_id}/sessions [get]
func (s *Server) ListSessions(c *gin.Context) {
	orgID, ok := s.orgIDFromRequest(c)
	if !ok {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid organization id"))
		return
	}

	var req sessiondomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.sessionSvc.List(c.Request.Context(), orgID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isSessionValidationError(err error) bool {
	switch err {
	case sessiondomain.ErrInvalidOrganization,
		sessiondomain.ErrInvalidPackage,
		sessiondomain.ErrInvalidTrainer,
		sessiondomain.ErrInvalidScheduledAt,
		sessiondomain.ErrInvalidPeriod,
		sessiondomain.ErrInvalidID:
		return true
	default:
		return false
	}
}
