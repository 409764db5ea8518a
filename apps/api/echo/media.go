package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core/assignment"
)

type mediaApi struct {
	svc assignment.Service
}

func registerMediaAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := mediaApi{svc: opts.AssignmentSvc}

	mg := g.Group("/media", jwt)
	mg.GET("/submissions/:id", api.submissionFile)
}

// submissionFile streams the stored bytes with the content type recorded at
// upload time. Pending rows and rows whose blob never landed read as 404.
func (api *mediaApi) submissionFile(ctx echo.Context) error {
	if _, err := getContextCredential(ctx); err != nil {
		return err
	}

	sub, rc, err := api.svc.SubmissionFile(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening submission file")
	}
	defer rc.Close()

	return ctx.Stream(http.StatusOK, sub.ContentType, rc)
}
