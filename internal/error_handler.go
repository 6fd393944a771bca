package internal

import (
	"errors"
	"net/http"

	"github.com/dushixiang/prism-studio/internal/xe"
	"github.com/dushixiang/prism-studio/pkg/nostd"
	"github.com/go-orz/orz"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{xe.ErrInvalidToken, http.StatusUnauthorized},
	{xe.ErrIncorrectPassword, http.StatusUnauthorized},
	{xe.ErrPermissionDenied, http.StatusForbidden},
	{xe.ErrUserDisabled, http.StatusForbidden},
	{xe.ErrDefaultStrategyReadOnly, http.StatusForbidden},
	{xe.ErrStrategyNotFound, http.StatusNotFound},
	{xe.ErrModelNotFound, http.StatusNotFound},
	{xe.ErrPromptTemplateNotFound, http.StatusNotFound},
	{xe.ErrConcurrentModification, http.StatusConflict},
	{xe.ErrAccountAlreadyUsed, http.StatusConflict},
	{xe.ErrAlreadySetup, http.StatusConflict},
}

func statusOf(err error) int {
	for _, item := range errorStatus {
		if errors.Is(err, item.err) {
			return item.status
		}
	}
	return http.StatusBadRequest
}

func WithErrorHandler(logger *zap.Logger, cv *nostd.CustomValidator) func(next echo.HandlerFunc) echo.HandlerFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					return c.JSON(he.Code, orz.Map{
						"code":    he.Code,
						"message": err.Error(),
					})
				}

				var ves validator.ValidationErrors
				if errors.As(err, &ves) {
					code, message := xe.ErrInvalidParams.Code, xe.ErrInvalidParams.Error()
					var oe *orz.Error
					if errors.As(err, &oe) {
						code, message = oe.Code, oe.Error()
					}
					return c.JSON(http.StatusBadRequest, orz.Map{
						"code":    code,
						"message": message,
						"fields":  cv.Translate(ves, nostd.Locale(c)),
					})
				}

				var oe *orz.Error
				if errors.As(err, &oe) {
					return c.JSON(statusOf(err), orz.Map{
						"code":    oe.Code,
						"message": err.Error(),
					})
				}

				logger.Sugar().Error("api", zap.Error(err))

				return c.JSON(500, orz.Map{
					"code":    500,
					"message": err.Error(),
				})
			}
			return nil
		}
	}
}
