package violations

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/ruleviolation"
)

// Register registers quality reporting routes
func Register(g *echo.Group) {
	g.GET("", ListViolations)
	g.GET("/scores", ListScores)
}

// ListViolations returns the violations from the most recent rule pass
func ListViolations(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*ruleviolation.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	violations, err := repo.List(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, violations)
}

// ListScores returns the per-dimension quality scores from the most recent rule pass
func ListScores(c echo.Context) error {
	ctx := c.Request().Context()

	ctx, repo, err := ectoinject.GetContext[*ruleviolation.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	scores, err := repo.Scores(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, scores)
}
