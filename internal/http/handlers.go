package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
	"github.com/fyrsmithlabs/inventoryd/internal/search"
	"github.com/fyrsmithlabs/inventoryd/internal/tenant"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// tenantFromHeader resolves and validates the tenant header. A missing
// tenant is always a client error, never a server error.
func tenantFromHeader(c echo.Context) (string, error) {
	tenantID := c.Request().Header.Get(TenantHeader)
	if err := tenant.Validate(tenantID); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "Tenant ID is required")
	}
	return tenantID, nil
}

// mapDomainError converts domain sentinel errors to HTTP errors.
func mapDomainError(err error) error {
	switch {
	case errors.Is(err, equipment.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "equipment not found")
	case errors.Is(err, equipment.ErrTenantRequired),
		errors.Is(err, equipment.ErrTenantMismatch),
		errors.Is(err, equipment.ErrIDMismatch),
		errors.Is(err, equipment.ErrInvalidRecord),
		errors.Is(err, tenant.ErrInvalidTenant),
		errors.Is(err, tenant.ErrMissingTenant),
		errors.Is(err, search.ErrInvalidQuery),
		errors.Is(err, search.ErrInvalidLimit):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), s.config.RequestTimeout)
}

func (s *Server) handleListEquipment(c echo.Context) error {
	tenantID, err := tenantFromHeader(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	records, err := s.equipment.List(ctx, tenantID)
	if err != nil {
		s.logger.Error("list equipment failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (s *Server) handleGetEquipment(c echo.Context) error {
	tenantID, err := tenantFromHeader(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	rec, err := s.equipment.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		if !errors.Is(err, equipment.ErrNotFound) {
			s.logger.Error("get equipment failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (s *Server) handleCreateEquipment(c echo.Context) error {
	tenantID, err := tenantFromHeader(c)
	if err != nil {
		return err
	}

	var rec equipment.Record
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	created, err := s.equipment.Create(ctx, tenantID, &rec)
	if err != nil {
		s.logger.Error("create equipment failed", zap.String("tenant_id", tenantID), zap.Error(err))
		return mapDomainError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) handleUpdateEquipment(c echo.Context) error {
	tenantID, err := tenantFromHeader(c)
	if err != nil {
		return err
	}

	var rec equipment.Record
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	updated, err := s.equipment.Update(ctx, tenantID, c.Param("id"), &rec)
	if err != nil {
		if !errors.Is(err, equipment.ErrNotFound) {
			s.logger.Error("update equipment failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteEquipment(c echo.Context) error {
	tenantID, err := tenantFromHeader(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if err := s.equipment.Delete(ctx, tenantID, c.Param("id")); err != nil {
		if !errors.Is(err, equipment.ErrNotFound) {
			s.logger.Error("delete equipment failed", zap.String("tenant_id", tenantID), zap.Error(err))
		}
		return mapDomainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleSearchEquipment(c echo.Context) error {
	tenantID, err := tenantFromHeader(c)
	if err != nil {
		return err
	}

	query := c.QueryParam("query")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	results, err := s.engine.Search(ctx, tenantID, query, search.Options{
		MaxResults:    s.config.SearchMaxResults,
		MinSimilarity: s.config.SearchMinSimilarity,
	})
	if err != nil {
		s.logger.Error("search failed",
			zap.String("tenant_id", tenantID),
			zap.String("query", query),
			zap.Error(err),
		)
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Message cannot be empty")
	}
	if err := tenant.Validate(req.TenantID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "TenantId cannot be empty")
	}

	s.logger.Info("received chat request", zap.String("tenant_id", req.TenantID))

	ctx, cancel := s.requestContext(c)
	defer cancel()

	sess := s.sessions.GetOrCreate(req.TenantID)
	answer, err := s.orchestrator.Process(ctx, sess, req.Message)
	if err != nil {
		s.logger.Error("chat processing failed",
			zap.String("tenant_id", req.TenantID),
			zap.Error(err),
		)
		return c.JSON(http.StatusInternalServerError, ChatResponse{
			Message: "An error occurred while processing your request.",
			Success: false,
		})
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Message: answer,
		Success: true,
	})
}

func (s *Server) handleChatClear(c echo.Context) error {
	var req ClearRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := tenant.Validate(req.TenantID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "TenantId cannot be empty")
	}

	s.sessions.Clear(req.TenantID)
	s.logger.Info("cleared chat session", zap.String("tenant_id", req.TenantID))

	return c.JSON(http.StatusOK, ChatResponse{
		Message: "Conversation cleared.",
		Success: true,
	})
}
