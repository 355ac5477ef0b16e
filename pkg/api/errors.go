package api

import (
	"net/http"

	"github.com/kfsoftware/agritrace/pkg/failure"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Kind    failure.Kind `json:"kind"`
	Message string       `json:"message"`
	// Report is set when a bulk run stopped part way.
	Report interface{} `json:"report,omitempty"`
}

func statusFor(kind failure.Kind) int {
	switch kind {
	case failure.KindValidation:
		return http.StatusBadRequest
	case failure.KindNotFound:
		return http.StatusNotFound
	case failure.KindLedger:
		return http.StatusBadGateway
	case failure.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c echo.Context, err error, report interface{}) error {
	f := failure.From(err)
	status := statusFor(f.Kind)
	if status >= http.StatusInternalServerError {
		log.WithField("path", c.Request().URL.Path).Errorf("Request failed: %v", err)
	}
	return c.JSON(status, errorResponse{Kind: f.Kind, Message: f.Message, Report: report})
}

// errorHandler shapes router and binding errors like every other failure.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		kind := failure.KindInternal
		switch {
		case he.Code == http.StatusNotFound:
			kind = failure.KindNotFound
		case he.Code < http.StatusInternalServerError:
			kind = failure.KindValidation
		}
		message, ok := he.Message.(string)
		if !ok {
			message = http.StatusText(he.Code)
		}
		err = c.JSON(he.Code, errorResponse{Kind: kind, Message: message})
	} else {
		err = writeError(c, err, nil)
	}
	if err != nil {
		log.Errorf("Could not write error response: %v", err)
	}
}
