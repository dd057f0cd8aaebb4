package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paylink/internal/apperr"
)

// errorBody is the JSON shape of every error answer.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	Code   string            `json:"code,omitempty"`
}

// errorResponse maps the error taxonomy onto HTTP status codes.
func errorResponse(c echo.Context, logger *zap.Logger, err error) error {
	var (
		validation *apperr.ValidationError
		notFound   *apperr.NotFoundError
		gateway    *apperr.GatewayError
	)
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "validation failed", Fields: validation.Fields})
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, errorBody{Error: notFound.Error()})
	case errors.As(err, &gateway):
		logger.Warn("Gateway request failed", zap.String("code", gateway.Code), zap.String("message", gateway.Message))
		return c.JSON(http.StatusBadGateway, errorBody{Error: gateway.Message, Code: gateway.Code})
	default:
		logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}
