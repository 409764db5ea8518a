package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/course"
)

var (
	errAsgNotFoundInCtx = errors.New("assignment object not found in echo.Context")
	errUnknownCourse    = "course_id does not reference a known course"

	submissionFileField = "file"
)

type assignmentApi struct {
	svc      assignment.Service
	crsSvc   course.Service
	engine   *authz.Engine
	validate *validator.Validate
}

func registerAssignmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := assignmentApi{
		svc:      opts.AssignmentSvc,
		crsSvc:   opts.CourseSvc,
		engine:   opts.Engine,
		validate: opts.Validate,
	}

	ag := g.Group("/assignments")

	// open endpoints
	ag.GET("/:id", api.retrieve)

	// authed endpoints
	ag.POST("", api.create, jwt)

	// instructor-of-course endpoints; missing and forbidden both read 404
	instructor := assignmentInstructorMiddleware(opts.AssignmentSvc, opts.CourseSvc, opts.Engine)
	ag.PATCH("/:id", api.update, jwt, instructor)
	ag.DELETE("/:id", api.destroy, jwt, instructor)
	ag.GET("/:id/submissions", api.querySubmissions, jwt, instructor)

	// enrolled students submit their work here
	enrolled := enrolledStudentMiddleware(opts.AssignmentSvc, opts.CourseSvc, opts.Engine)
	ag.POST("/:id/submissions", api.createSubmission, jwt, enrolled)
}

// Handlers

// create requires the caller to be the instructor of the target course (or
// an admin). Unlike the per-resource checks this one responds 403: the
// caller already knows the courseId, so hiding existence buys nothing.
func (api *assignmentApi) create(ctx echo.Context) error {
	cred, err := getContextCredential(ctx)
	if err != nil {
		return err
	}

	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	crs, err := api.crsSvc.GetByID(reqCtx, data.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: errUnknownCourse})
		}
		return errors.Wrap(err, "finding course by ID")
	}
	if !api.engine.IsCourseInstructor(cred, crs.InstructorID) {
		return errHttpForbidden
	}

	asg, err := api.svc.Create(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	asg, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding assignment by ID")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) update(ctx echo.Context) error {
	asg, ok := ctx.Get(assignmentContextKey).(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}

	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	if err := data.Validate(asg, api.validate); err != nil {
		return err
	}

	asg, err := api.svc.Update(ctx.Request().Context(), asg.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, asg)
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	asg, ok := ctx.Get(assignmentContextKey).(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(ctx.Request().Context(), asg.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *assignmentApi) querySubmissions(ctx echo.Context) error {
	asg, ok := ctx.Get(assignmentContextKey).(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}

	pagination := new(Pagination)
	pagination.Bind(ctx)

	subs, err := api.svc.QuerySubmissions(ctx.Request().Context(), asg.ID, pagination.Page, pagination.PerPage)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []assignment.Submission{}
	}
	for i := range subs {
		subs[i].FileURL = submissionFileURL(subs[i].ID)
	}
	return ctx.JSON(http.StatusOK, subs)
}

// createSubmission reads the uploaded file from the multipart "file" field;
// the metadata row lands first and the submission only becomes visible once
// the blob write commits.
func (api *assignmentApi) createSubmission(ctx echo.Context) error {
	cred, err := getContextCredential(ctx)
	if err != nil {
		return err
	}
	asg, ok := ctx.Get(assignmentContextKey).(assignment.Assignment)
	if !ok {
		return errors.Wrap(errAsgNotFoundInCtx, "retrieving object from context")
	}

	fileHeader, err := ctx.FormFile(submissionFileField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "a file upload is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	data := assignment.NewSubmission{
		AssignmentID: asg.ID,
		StudentID:    cred.ID,
		ContentType:  fileHeader.Header.Get(echo.HeaderContentType),
		Filename:     fileHeader.Filename,
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubmission(ctx.Request().Context(), data, file)
	if err != nil {
		return errors.Wrap(err, "creating submission")
	}
	sub.FileURL = submissionFileURL(sub.ID)
	return ctx.JSON(http.StatusCreated, sub)
}

func submissionFileURL(id string) string {
	return "/media/submissions/" + id
}
