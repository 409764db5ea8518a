package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/course"
	"github.com/tarpaulin/backend/core/user"
)

type userApi struct {
	svc       user.Service
	courseSvc course.Service
	conf      *core.Config
	validate  *validator.Validate
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := userApi{
		svc:       opts.UserSvc,
		courseSvc: opts.CourseSvc,
		conf:      opts.Conf,
		validate:  opts.Validate,
	}

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("", api.create) // role-create requires an admin token
	ug.POST("/login", api.login)
	ug.POST("/password-reset", api.resetPassword)
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ug.GET("/:id", api.retrieve, jwt)
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	// admin and instructor accounts can only be minted by an admin
	cred, _ := optionalCredential(ctx, api.conf)
	role := data.Role
	if role == "" {
		role = authz.RoleStudent
	}
	if !cred.CanGrantRole(role) {
		return errHttpForbidden
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc, api.conf)
	if err != nil {
		return err
	}
	token, err := GenerateToken(api.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

// retrieve returns the user's record along with the ids of the courses they
// teach (instructor) or are enrolled in (student). Only the user themselves
// or an admin may look it up.
func (api *userApi) retrieve(ctx echo.Context) error {
	cred, err := getContextCredential(ctx)
	if err != nil {
		return err
	}
	id := ctx.Param("id")
	if id != cred.ID && !cred.IsAdmin() {
		return errHttpForbidden
	}

	reqCtx := ctx.Request().Context()
	usr, err := api.svc.GetByID(reqCtx, id)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	resp := UserDetailResponse{User: usr}
	switch {
	case usr.IsInstructor():
		if resp.Courses, err = api.courseSvc.CourseIDsByInstructor(reqCtx, usr.ID); err != nil {
			return errors.Wrap(err, "listing instructor courses")
		}
	case usr.IsStudent():
		if resp.Courses, err = api.courseSvc.CourseIDsByStudent(reqCtx, usr.ID); err != nil {
			return errors.Wrap(err, "listing student courses")
		}
	}
	if resp.Courses == nil {
		resp.Courses = []string{}
	}
	return ctx.JSON(http.StatusOK, resp)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	UserDetailResponse struct {
		user.User
		Courses []string `json:"courses"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
