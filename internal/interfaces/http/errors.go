package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tikusl4ju/myinvoice-sync/internal/application/dto"
	"github.com/tikusl4ju/myinvoice-sync/internal/application/scheduler"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain"
)

// errorMapping traduce un error centinela a estado HTTP y código de respuesta.
type errorMapping struct {
	err    error
	status int
	code   string
}

// El orden importa: se usa la primera coincidencia con errors.Is.
var errorMappings = []errorMapping{
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{scheduler.ErrUnknownPass, fiber.StatusNotFound, "UNKNOWN_PASS"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrInvalidCertificate, fiber.StatusBadRequest, "INVALID_CERTIFICATE"},
	{domain.ErrInvalidQueueToken, fiber.StatusBadRequest, "INVALID_QUEUE_TOKEN"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrCertificateRequired, fiber.StatusPreconditionFailed, "CERTIFICATE_REQUIRED"},
	{domain.ErrOriginalNotEligible, fiber.StatusPreconditionFailed, "ORIGINAL_NOT_ELIGIBLE"},
	{domain.ErrNotCreditNote, fiber.StatusPreconditionFailed, "NOT_CREDIT_NOTE"},
	{domain.ErrDuplicateCreditNote, fiber.StatusConflict, "DUPLICATE_CREDIT_NOTE"},
	{domain.ErrDuplicateRefundNote, fiber.StatusConflict, "DUPLICATE_REFUND_NOTE"},
	{domain.ErrNotDeletable, fiber.StatusConflict, "NOT_DELETABLE"},
	{domain.ErrSubmissionInFlight, fiber.StatusConflict, "SUBMISSION_IN_FLIGHT"},
	{domain.ErrStatusChanged, fiber.StatusConflict, "STATUS_CHANGED"},
	{domain.ErrConflict, fiber.StatusConflict, "CONFLICT"},
	{domain.ErrOrderSkipped, fiber.StatusUnprocessableEntity, "ORDER_SKIPPED"},
	{domain.ErrCancellationWindowElapsed, fiber.StatusUnprocessableEntity, "CANCELLATION_WINDOW_ELAPSED"},
	{domain.ErrCancellationRejected, fiber.StatusUnprocessableEntity, "CANCELLATION_REJECTED"},
	{domain.ErrRemoteUnavailable, fiber.StatusBadGateway, "REMOTE_UNAVAILABLE"},
}

// requestError error de forma de la petición (cuerpo, query o parámetros).
type requestError struct {
	code string
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func invalidRequest(code, msg string) error { return &requestError{code: code, msg: msg} }

// writeError responde {code, message} según el error; lo no mapeado es 500.
func writeError(c *fiber.Ctx, err error) error {
	var re *requestError
	if errors.As(err, &re) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: re.code, Message: re.msg})
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}

var validate = validator.New()

// bindBody decodifica el JSON y valida las etiquetas validate.
func bindBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return invalidRequest("INVALID_BODY", "cuerpo inválido")
	}
	if err := validate.Struct(out); err != nil {
		return invalidRequest("VALIDATION", err.Error())
	}
	return nil
}

// bindQuery decodifica la query string y valida las etiquetas validate.
func bindQuery(c *fiber.Ctx, out any) error {
	if err := c.QueryParser(out); err != nil {
		return invalidRequest("INVALID_QUERY", "parámetros inválidos")
	}
	if err := validate.Struct(out); err != nil {
		return invalidRequest("VALIDATION", err.Error())
	}
	return nil
}

// paramID lee un parámetro de ruta entero positivo.
func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, invalidRequest("VALIDATION", name+" debe ser un entero positivo")
	}
	return int64(id), nil
}
