package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/lakefs-adapter/internal/lakefs"
	"github.com/Checker-Finance/lakefs-adapter/internal/metrics"
	"github.com/Checker-Finance/lakefs-adapter/pkg/model"
	"github.com/Checker-Finance/lakefs-adapter/pkg/utils"
)

// SessionService defines the session operations used by the handler.
type SessionService interface {
	Session(ctx context.Context, clientID string) (*model.Session, error)
	Revoke(ctx context.Context, clientID string) error
}

// ClientValidator checks whether a client ID is configured and allowed.
type ClientValidator interface {
	IsKnownClient(ctx context.Context, clientID string) bool
}

// LakeFSHandler handles HTTP API requests for lakeFS sessions and login payloads.
type LakeFSHandler struct {
	logger    *zap.Logger
	sessions  SessionService
	validator ClientValidator
}

// NewLakeFSHandler creates a new LakeFSHandler. validator may be nil.
func NewLakeFSHandler(logger *zap.Logger, sessions SessionService, validator ClientValidator) *LakeFSHandler {
	return &LakeFSHandler{
		logger:    logger,
		sessions:  sessions,
		validator: validator,
	}
}

// CreateSessionHandler establishes or reuses the session of a client.
func (h *LakeFSHandler) CreateSessionHandler(c *fiber.Ctx) error {
	var req SessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if h.validator != nil && !h.validator.IsKnownClient(c.UserContext(), req.ClientID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "unknown or unauthorized clientId"})
	}

	sess, err := h.sessions.Session(c.UserContext(), req.ClientID)
	if err != nil {
		h.logger.Error("lakefs.create_session.failed",
			zap.String("client", req.ClientID),
			zap.Error(err))
		return c.Status(sessionErrorStatus(err)).JSON(SessionResponse{
			ClientID: req.ClientID,
			ErrorMsg: err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		ClientID:  sess.ClientID,
		UserID:    sess.UserID,
		IssuedAt:  sess.IssuedAt.Unix(),
		ExpiresAt: sess.ExpiresAt.Unix(),
	})
}

// RevokeSessionHandler drops the cached session of a client.
func (h *LakeFSHandler) RevokeSessionHandler(c *fiber.Ctx) error {
	clientID := strings.TrimSpace(c.Params("clientId"))
	if clientID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "clientId is required"})
	}

	if err := h.sessions.Revoke(c.UserContext(), clientID); err != nil {
		h.logger.Error("lakefs.revoke_session.failed",
			zap.String("client", clientID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ValidateLoginInformationHandler checks a raw LoginInformation document and
// echoes the normalised payload with the secret masked.
func (h *LakeFSHandler) ValidateLoginInformationHandler(c *fiber.Ctx) error {
	body := c.Body()

	if err := model.ValidateLoginInformation(body); err != nil {
		return h.rejectLogin(c, err)
	}
	login, err := model.LoginInformationFromJSON(string(body))
	if err != nil {
		return h.rejectLogin(c, err)
	}

	payload, err := maskedPayload(login)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	metrics.IncLoginValidation("ok")
	return c.Status(fiber.StatusOK).JSON(ValidationResponse{Valid: true, Payload: payload})
}

func (h *LakeFSHandler) rejectLogin(c *fiber.Ctx, err error) error {
	var se *model.SchemaError
	if !errors.As(err, &se) {
		metrics.IncLoginValidation("malformed")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	metrics.IncLoginValidation(string(se.Reason))
	h.logger.Debug("lakefs.login_information_rejected",
		zap.String("field", se.Field),
		zap.String("reason", string(se.Reason)))
	// the raw message echoes the posted document, secret included
	return c.Status(fiber.StatusUnprocessableEntity).JSON(ValidationResponse{Valid: false, Error: se.Redacted()})
}

// maskedPayload encodes login in wire order with the secret masked.
func maskedPayload(login *model.LoginInformation) (json.RawMessage, error) {
	masked := *login
	masked.SecretAccessKey = utils.MaskSecret(login.SecretAccessKey)
	return json.Marshal(masked)
}

// sessionErrorStatus maps a session failure to an HTTP status. Upstream
// faults are checked first so a malformed lakeFS response is never blamed on
// the client's credentials.
func sessionErrorStatus(err error) int {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.StatusCode == fiber.StatusUnauthorized:
		return fiber.StatusUnauthorized
	case errors.As(err, &apiErr) && apiErr.StatusCode == fiber.StatusTooManyRequests:
		return fiber.StatusTooManyRequests
	case errors.As(err, &apiErr), errors.Is(err, lakefs.ErrBadResponse):
		return fiber.StatusBadGateway
	case model.IsSchemaError(err):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusServiceUnavailable
	}
}
