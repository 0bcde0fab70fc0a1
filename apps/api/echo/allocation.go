package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/markalloc/core/allocation"
)

// Validation outcomes counted by the validate endpoint.
const (
	validationValid   = "valid"
	validationExceeds = "exceeds"
)

type allocationApi struct {
	svc         *allocation.Service
	validate    *validator.Validate
	translator  ut.Translator
	validations *prometheus.CounterVec
}

func registerAllocationAPI(
	g *echo.Group,
	svc *allocation.Service,
	validate *validator.Validate,
	translator ut.Translator,
	reg prometheus.Registerer,
) {
	api := allocationApi{
		svc:        svc,
		validate:   validate,
		translator: translator,
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "markalloc",
			Subsystem: "api",
			Name:      "validations_total",
			Help:      "Draft validations answered, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(api.validations)

	g.POST("/allocations/validate", api.validateMarks)

	sg := g.Group("/semesters")
	sg.GET("", api.querySemesters)
	sg.POST("", api.createSemester)

	// detail endpoints
	dg := sg.Group("/:id")
	dg.GET("", api.retrieveSemester)
	dg.GET("/allocation", api.semesterAllocation)
	dg.POST("/contents", api.commitContent)
	dg.PUT("/contents/:content_id", api.updateContent)
	dg.DELETE("/contents/:content_id", api.deleteContent)
}

// Handlers

func (api *allocationApi) validateMarks(ctx echo.Context) error {
	var data allocation.ValidationRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ValidationRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.ValidateMarkAllocation(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "validating mark allocation")
	}

	if res.WouldExceedLimit {
		api.validations.WithLabelValues(validationExceeds).Inc()
	} else {
		api.validations.WithLabelValues(validationValid).Inc()
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *allocationApi) querySemesters(ctx echo.Context) error {
	sems, err := api.svc.QuerySemesters(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying semesters")
	}
	return ctx.JSON(http.StatusOK, sems)
}

func (api *allocationApi) createSemester(ctx echo.Context) error {
	var data allocation.NewSemester
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSemester")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sem, err := api.svc.CreateSemester(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating semester")
	}
	return ctx.JSON(http.StatusCreated, sem)
}

func (api *allocationApi) retrieveSemester(ctx echo.Context) error {
	sem, err := api.svc.GetSemester(ctx.Request().Context(), allocation.SelectSemester(ctx.Param("id")))
	if err != nil {
		return errors.Wrap(err, "getting semester")
	}
	return ctx.JSON(http.StatusOK, sem)
}

func (api *allocationApi) semesterAllocation(ctx echo.Context) error {
	summary, err := api.svc.FetchSemesterAllocation(ctx.Request().Context(), allocation.SelectSemester(ctx.Param("id")))
	if err != nil {
		return errors.Wrap(err, "fetching semester allocation")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *allocationApi) commitContent(ctx echo.Context) error {
	var data allocation.NewContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	content, err := api.svc.CommitContent(ctx.Request().Context(), allocation.SelectSemester(ctx.Param("id")), data)
	if err != nil {
		return errors.Wrap(err, "committing content")
	}
	return ctx.JSON(http.StatusCreated, content)
}

func (api *allocationApi) updateContent(ctx echo.Context) error {
	var data allocation.UpdateContent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	content, err := api.svc.UpdateContent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("content_id"), data)
	if err != nil {
		return errors.Wrap(err, "updating content")
	}
	return ctx.JSON(http.StatusOK, content)
}

func (api *allocationApi) deleteContent(ctx echo.Context) error {
	if err := api.svc.DeleteContent(ctx.Request().Context(), ctx.Param("id"), ctx.Param("content_id")); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return ctx.NoContent(http.StatusNoContent)
}
