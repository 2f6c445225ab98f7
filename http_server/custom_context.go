package http_server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danthegoodman1/bqstream/bq"
	"github.com/danthegoodman1/bqstream/gologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type CustomContext struct {
	echo.Context
	RequestID string
	// Table is set once a handler knows which table the request targets
	Table *bq.TableRef
}

func CreateReqContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := uuid.NewString()
		ctx := context.WithValue(c.Request().Context(), gologger.ReqIDKey, reqID)
		ctx = logger.WithContext(ctx)
		c.SetRequest(c.Request().WithContext(ctx))
		logger := zerolog.Ctx(ctx)
		logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("reqID", reqID)
		})
		c.Response().Header().Set(echo.HeaderXRequestID, reqID)
		cc := &CustomContext{
			Context:   c,
			RequestID: reqID,
		}
		return next(cc)
	}
}

// Casts to custom context for the handler, so this doesn't have to be done per handler
func ccHandler(h func(*CustomContext) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		return h(c.(*CustomContext))
	}
}

// WithTable tags the request and its logger with the target table, so every
// later log line for the request carries it
func (c *CustomContext) WithTable(ref bq.TableRef) {
	c.Table = &ref
	zerolog.Ctx(c.Request().Context()).UpdateContext(func(zc zerolog.Context) zerolog.Context {
		return zc.Str("table", ref.String())
	})
}

func (c *CustomContext) internalErrorMessage() string {
	return "internal error, request id: " + c.RequestID
}

func (c *CustomContext) InternalError(err error, msg string) error {
	c.logInternalError(err, msg)
	return c.String(http.StatusInternalServerError, c.internalErrorMessage())
}

// LogInternalError logs err like InternalError and returns the message to show
// the client, for handlers that still have a response body to send
func (c *CustomContext) LogInternalError(err error, msg string) string {
	c.logInternalError(err, msg)
	return msg + ", " + c.internalErrorMessage()
}

func (c *CustomContext) logInternalError(err error, msg string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		zerolog.Ctx(c.Request().Context()).Warn().CallerSkipFrame(2).Msg(err.Error())
	} else {
		zerolog.Ctx(c.Request().Context()).Error().CallerSkipFrame(2).Err(err).Msg(msg)
	}
}
