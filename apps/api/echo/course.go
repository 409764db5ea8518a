package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/course"
)

var errCrsNotFoundInCtx = errors.New("course object not found in echo.Context")

type courseApi struct {
	svc      course.Service
	asgSvc   assignment.Service
	engine   *authz.Engine
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := courseApi{
		svc:      opts.CourseSvc,
		asgSvc:   opts.AssignmentSvc,
		engine:   opts.Engine,
		validate: opts.Validate,
	}

	cg := g.Group("/courses")

	// open endpoints
	cg.GET("", api.query)
	cg.GET("/:id", api.retrieve)

	// authed endpoints
	cg.POST("", api.create, jwt, roleMiddleware(authz.RoleAdmin))
	cg.GET("/:id/assignments", api.assignments, jwt)

	// instructor-of-course endpoints; missing and forbidden both read 404
	ig := cg.Group("/:id", jwt, courseInstructorMiddleware(opts.CourseSvc, opts.Engine))
	ig.PATCH("", api.update)
	ig.DELETE("", api.destroy)
	ig.GET("/students", api.students)
	ig.POST("/students", api.updateEnrollment)
	ig.GET("/roster", api.roster)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	pagination := new(Pagination)
	pagination.Bind(ctx)

	courses, err := api.svc.Query(ctx.Request().Context(), *filter, pagination.Page, pagination.PerPage)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	crs, ok := ctx.Get(courseContextKey).(course.Course)
	if !ok {
		return errors.Wrap(errCrsNotFoundInCtx, "retrieving object from context")
	}

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(ctx.Request().Context(), crs, api.validate, api.svc); err != nil {
		return err
	}

	crs, err := api.svc.Update(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

// destroy is admin-only; an instructor hitting it gets the same 404 an
// outsider would.
func (api *courseApi) destroy(ctx echo.Context) error {
	cred, err := getContextCredential(ctx)
	if err != nil {
		return err
	}
	if !cred.IsAdmin() {
		return errHttpNotFound
	}

	crs, ok := ctx.Get(courseContextKey).(course.Course)
	if !ok {
		return errors.Wrap(errCrsNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) students(ctx echo.Context) error {
	crs, ok := ctx.Get(courseContextKey).(course.Course)
	if !ok {
		return errors.Wrap(errCrsNotFoundInCtx, "retrieving object from context")
	}

	ids, err := api.svc.Students(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "listing course students")
	}
	return ctx.JSON(http.StatusOK, StudentsResponse{Students: ids})
}

func (api *courseApi) updateEnrollment(ctx echo.Context) error {
	crs, ok := ctx.Get(courseContextKey).(course.Course)
	if !ok {
		return errors.Wrap(errCrsNotFoundInCtx, "retrieving object from context")
	}

	var data course.EnrollmentUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EnrollmentUpdate")
	}
	if data.IsEmpty() {
		return echo.NewHTTPError(http.StatusBadRequest, "request body must contain an add or remove list")
	}

	res, err := api.svc.UpdateEnrollment(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *courseApi) roster(ctx echo.Context) error {
	crs, ok := ctx.Get(courseContextKey).(course.Course)
	if !ok {
		return errors.Wrap(errCrsNotFoundInCtx, "retrieving object from context")
	}

	csv, err := api.svc.RosterCSV(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "rendering roster")
	}

	filename := fmt.Sprintf("%s%s-%s-roster.csv", crs.Subject, crs.Number, crs.Term)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return ctx.Blob(http.StatusOK, "text/csv", csv)
}

// assignments lists a course's assignments; any authenticated caller may
// read them.
func (api *courseApi) assignments(ctx echo.Context) error {
	if _, err := getContextCredential(ctx); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	crs, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}

	ids, err := api.asgSvc.IDsByCourse(reqCtx, crs.ID)
	if err != nil {
		return errors.Wrap(err, "listing course assignments")
	}
	return ctx.JSON(http.StatusOK, AssignmentsResponse{Assignments: ids})
}

type (
	StudentsResponse struct {
		Students []string `json:"students"`
	}

	AssignmentsResponse struct {
		Assignments []string `json:"assignments"`
	}
)
