package tempgroup

import (
	"context"
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

var (
	subjectPattern       = regexp.MustCompile(`^[\w.\-@]+$`)
	durationInputPattern = regexp.MustCompile(`(?i)^\d+[smhd]$`)
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// TimerService is the scheduler surface the controller consumes.
type TimerService interface {
	Assign(ctx context.Context, actor ActorRef, subject, group, duration string) (GroupTimer, error)
	Cancel(ctx context.Context, actor ActorRef, subject string) error
	Remaining(subject string) (time.Duration, error)
	Pending() TimerSnapshot
}

// TempGroupControllerRoutes holds the route paths.
type TempGroupControllerRoutes struct {
	Assign      string
	AssignAlias string
	Status      string
	List        string
}

// TempGroupController exposes the set-timer command surface over HTTP.
type TempGroupController struct {
	Debug   bool
	Logger  Logger
	Service TimerService
	Routes  *TempGroupControllerRoutes
}

// TempGroupControllerOption configures the controller.
type TempGroupControllerOption func(*TempGroupController) *TempGroupController

// WithControllerService sets the scheduler backing the routes.
func WithControllerService(svc TimerService) TempGroupControllerOption {
	return func(c *TempGroupController) *TempGroupController {
		c.Service = svc
		return c
	}
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) TempGroupControllerOption {
	return func(c *TempGroupController) *TempGroupController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerDebug enables verbose payload dumps.
func WithControllerDebug(debug bool) TempGroupControllerOption {
	return func(c *TempGroupController) *TempGroupController {
		c.Debug = debug
		return c
	}
}

// NewTempGroupController creates a controller with default routes.
func NewTempGroupController(opts ...TempGroupControllerOption) *TempGroupController {
	c := &TempGroupController{
		Logger: defLogger{},
		Routes: &TempGroupControllerRoutes{
			Assign:      "/tempgroup",
			AssignAlias: "/ptempgroup",
			Status:      "/tempgroup/:subject",
			List:        "/tempgroup",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Service == nil {
		panic("Missing TimerService in tempgroup controller...")
	}

	return c
}

// RegisterTempGroupRoutes wires the controller into a router group.
func RegisterTempGroupRoutes(app RouteRegistrar, opts ...TempGroupControllerOption) *TempGroupController {
	controller := NewTempGroupController(opts...)

	app.Get(controller.Routes.List, controller.ListGet)
	app.Get(controller.Routes.Status, controller.StatusGet)
	app.Post(controller.Routes.Assign, controller.AssignPost)
	app.Post(controller.Routes.AssignAlias, controller.AssignPost)
	app.Delete(controller.Routes.Status, controller.CancelDelete)

	return controller
}

// TempGroupRequest is the set-timer payload.
type TempGroupRequest struct {
	Subject  string `form:"subject" json:"subject"`
	Group    string `form:"group" json:"group"`
	Duration string `form:"duration" json:"duration"`
}

// Validate will run validation rules
func (r TempGroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Subject,
			validation.Required,
			validation.Length(1, 120),
			validation.Match(subjectPattern),
		),
		validation.Field(
			&r.Group,
			validation.Required,
			validation.Length(1, 120),
		),
		validation.Field(
			&r.Duration,
			validation.Required,
			validation.Match(durationInputPattern).Error("must match \\d+[smhd]"),
		),
	)
}

// TempGroupResponse confirms an assignment.
type TempGroupResponse struct {
	Subject       string    `json:"subject"`
	Group         string    `json:"group"`
	OriginalGroup string    `json:"original_group"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// AssignPost handles the tempgroup command.
func (a *TempGroupController) AssignPost(ctx router.Context) error {
	payload := new(TempGroupRequest)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]string{
			"error": "could not parse request body",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error":      "validation failed",
			"validation": err.Error(),
		})
	}

	if a.Debug {
		fmt.Println("======= TEMPGROUP ASSIGN ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	entry, err := a.Service.Assign(
		ctx.Context(),
		ActorRef{ID: ctx.Header("X-Actor-ID"), Type: "http"},
		payload.Subject,
		payload.Group,
		payload.Duration,
	)
	if err != nil {
		return a.errJSON(ctx, err)
	}

	return ctx.JSON(router.StatusOK, TempGroupResponse{
		Subject:       payload.Subject,
		Group:         payload.Group,
		OriginalGroup: entry.OriginalGroup,
		ExpiresAt:     entry.ExpiryTime,
	})
}

// StatusGet reports the remaining time for a pending reversion.
func (a *TempGroupController) StatusGet(ctx router.Context) error {
	subject := ctx.Param("subject", "")

	remaining, err := a.Service.Remaining(subject)
	if err != nil {
		return a.errJSON(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"subject":           subject,
		"remaining_seconds": int64(remaining.Seconds()),
	})
}

// ListGet returns every pending reversion.
func (a *TempGroupController) ListGet(ctx router.Context) error {
	return ctx.JSON(router.StatusOK, map[string]any{
		"timers": a.Service.Pending(),
	})
}

// CancelDelete removes a pending reversion without reverting the group.
func (a *TempGroupController) CancelDelete(ctx router.Context) error {
	subject := ctx.Param("subject", "")

	actor := ActorRef{ID: ctx.Header("X-Actor-ID"), Type: "http"}
	if err := a.Service.Cancel(ctx.Context(), actor, subject); err != nil {
		return a.errJSON(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"subject": subject,
		"status":  "cancelled",
	})
}

func (a *TempGroupController) errJSON(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Error("tempgroup handler error: %s category=%s", richErr.Message, richErr.Category)

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return ctx.JSON(status, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
