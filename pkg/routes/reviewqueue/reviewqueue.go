package reviewqueue

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/clover/internal/repositories/reviewcandidate"
	"github.com/Ramsey-B/clover/pkg/models"
)

// Register registers review queue routes
func Register(g *echo.Group) {
	g.GET("", ListReviewCandidates)
	g.GET("/:id", GetReviewCandidate)
	g.POST("/:id/approve", ApproveReviewCandidate)
	g.POST("/:id/reject", RejectReviewCandidate)
	g.POST("/:id/defer", DeferReviewCandidate)
}

// ListReviewCandidates lists pending review candidates, oldest first
func ListReviewCandidates(c echo.Context) error {
	ctx := c.Request().Context()

	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = parsed
	}

	ctx, repo, err := ectoinject.GetContext[*reviewcandidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	candidates, err := repo.ListPending(ctx, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, candidates)
}

// GetReviewCandidate gets a review candidate by id
func GetReviewCandidate(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*reviewcandidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	candidate, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if candidate == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "review candidate not found")
	}

	return c.JSON(http.StatusOK, candidate)
}

// ApproveReviewCandidate approves a pending match pair
func ApproveReviewCandidate(c echo.Context) error {
	return resolve(c, models.ReviewStatusApproved)
}

// RejectReviewCandidate rejects a pending match pair
func RejectReviewCandidate(c echo.Context) error {
	return resolve(c, models.ReviewStatusRejected)
}

// DeferReviewCandidate defers a pending match pair for later review
func DeferReviewCandidate(c echo.Context) error {
	return resolve(c, models.ReviewStatusDeferred)
}

func resolve(c echo.Context, status string) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var resolvedBy *string
	if reviewer := c.QueryParam("resolved_by"); reviewer != "" {
		resolvedBy = &reviewer
	}

	ctx, repo, err := ectoinject.GetContext[*reviewcandidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := repo.UpdateStatus(ctx, id, status, resolvedBy); err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"id":     id,
			"status": status,
		}).Info("Resolved review candidate")
	}

	// Approvals take effect on the next batch run; the pipeline never merges
	// a pair mid-flight.

	return c.JSON(http.StatusOK, map[string]string{"status": status})
}
