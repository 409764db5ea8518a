package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/course"
)

const (
	courseContextKey     = "course"
	assignmentContextKey = "assignment"
)

// roleMiddleware gates a route by coarse role; failures respond 403.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cred, err := getContextCredential(ctx)
			if err != nil {
				return err
			}
			if err = authz.RequireRole(cred, roles...); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

// courseInstructorMiddleware resolves the course at :id and lets only its
// instructor (or an admin) through. A missing course and a lack of
// permission both read as 404 so existence is not confirmed to outsiders.
func courseInstructorMiddleware(svc course.Service, engine *authz.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cred, err := getContextCredential(ctx)
			if err != nil {
				return err
			}

			crs, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == course.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding course by ID")
			}
			if !engine.IsCourseInstructor(cred, crs.InstructorID) {
				return errHttpNotFound
			}

			ctx.Set(courseContextKey, crs)
			return next(ctx)
		}
	}
}

// assignmentInstructorMiddleware resolves the assignment at :id and its
// course, letting only the course's instructor (or an admin) through; same
// 404 policy as courseInstructorMiddleware.
func assignmentInstructorMiddleware(asgSvc assignment.Service, crsSvc course.Service, engine *authz.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cred, err := getContextCredential(ctx)
			if err != nil {
				return err
			}

			asg, crs, err := resolveAssignmentCourse(ctx, asgSvc, crsSvc)
			if err != nil {
				return err
			}
			if !engine.IsCourseInstructor(cred, crs.InstructorID) {
				return errHttpNotFound
			}

			ctx.Set(assignmentContextKey, asg)
			ctx.Set(courseContextKey, crs)
			return next(ctx)
		}
	}
}

// enrolledStudentMiddleware resolves the assignment at :id and lets only a
// student enrolled in its course (or an admin) through, 404 otherwise.
func enrolledStudentMiddleware(asgSvc assignment.Service, crsSvc course.Service, engine *authz.Engine) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cred, err := getContextCredential(ctx)
			if err != nil {
				return err
			}

			asg, crs, err := resolveAssignmentCourse(ctx, asgSvc, crsSvc)
			if err != nil {
				return err
			}
			enrolled, err := engine.IsStudentEnrolled(ctx.Request().Context(), cred, crs.ID)
			if err != nil {
				return errors.Wrap(err, "checking enrollment")
			}
			if !enrolled {
				return errHttpNotFound
			}

			ctx.Set(assignmentContextKey, asg)
			ctx.Set(courseContextKey, crs)
			return next(ctx)
		}
	}
}

func resolveAssignmentCourse(
	ctx echo.Context,
	asgSvc assignment.Service,
	crsSvc course.Service,
) (assignment.Assignment, course.Course, error) {
	reqCtx := ctx.Request().Context()

	asg, err := asgSvc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == assignment.ErrNotFound {
			return assignment.Assignment{}, course.Course{}, errHttpNotFound
		}
		return assignment.Assignment{}, course.Course{}, errors.Wrap(err, "finding assignment by ID")
	}

	crs, err := crsSvc.GetByID(reqCtx, asg.CourseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return assignment.Assignment{}, course.Course{}, errHttpNotFound
		}
		return assignment.Assignment{}, course.Course{}, errors.Wrap(err, "finding assignment course")
	}
	return asg, crs, nil
}
