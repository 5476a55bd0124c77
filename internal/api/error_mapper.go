package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ironsheep/door-ai-studio/internal/detection"
	"github.com/ironsheep/door-ai-studio/internal/imaging"
	"github.com/ironsheep/door-ai-studio/internal/metrics"
	"github.com/ironsheep/door-ai-studio/internal/relay"
)

// errorResponse is the body of every failed API call.
type errorResponse struct {
	Error string `json:"error"`
}

// mapError converts an error into a status code and a client-facing message.
func mapError(err error) (int, string) {
	var re *relay.Error
	if errors.As(err, &re) {
		switch re.Kind {
		case relay.KindValidation, relay.KindDecode:
			return http.StatusBadRequest, re.Message
		case relay.KindUpstream:
			if re.StatusCode >= 400 && re.StatusCode < 500 {
				return http.StatusBadRequest, re.Message
			}
			return http.StatusBadGateway, re.Message
		case relay.KindNoImage:
			return http.StatusBadGateway, re.Message
		default:
			return http.StatusInternalServerError, re.Message
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	}

	switch {
	case errors.Is(err, imaging.ErrDecode):
		return http.StatusBadRequest, "Invalid image file"
	case errors.Is(err, imaging.ErrInvalidBox),
		errors.Is(err, detection.ErrOutOfBounds),
		errors.Is(err, detection.ErrEmptyImage):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// errorKind labels err for the errors_total metric.
func errorKind(err error) string {
	var re *relay.Error
	if errors.As(err, &re) {
		return re.Kind.String()
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return "http"
	}
	if errors.Is(err, imaging.ErrDecode) {
		return relay.KindDecode.String()
	}
	if errors.Is(err, imaging.ErrInvalidBox) || errors.Is(err, detection.ErrOutOfBounds) {
		return relay.KindValidation.String()
	}
	return relay.KindUnexpected.String()
}

// handleError writes {"error": message} with the mapped status.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, msg := mapError(err)
	if status >= http.StatusInternalServerError {
		requestLogger(c, s.logger).Error("request error", "path", c.Path(), "error", err)
	}
	if c.Path() != "" && status != http.StatusNotFound && status != http.StatusMethodNotAllowed {
		metrics.RecordError(c.Path(), errorKind(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorResponse{Error: msg})
	}
	if err != nil {
		requestLogger(c, s.logger).Error("failed to write error response", "error", err)
	}
}
