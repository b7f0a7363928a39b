package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/batch"
	apperrors "github.com/ZanzyTHEbar/synastry-o-meter/internal/errors"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/monitoring"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/synastry"
	"github.com/ZanzyTHEbar/synastry-o-meter/internal/types"
)

// handleReport scores a pair symmetrically
func (s *server) handleReport(c *gin.Context) {
	start := time.Now()

	var req types.PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, bindError(err))
		return
	}
	if err := s.validateParties(map[string]synastry.Party{"left": req.Left, "right": req.Right}); err != nil {
		s.reject(c, err)
		return
	}

	rep, err := s.analyzer.Report(req)
	if err != nil {
		s.reject(c, err)
		return
	}

	s.observe(types.ModeReport, rep.Orientation, rep.Percent, rep.Afflictions.Penalty, rep.Modules)
	s.logger.EvaluationLogger(monitoring.RequestID(c), types.ModeReport, string(rep.Orientation),
		rep.Percent, rep.Penalty, rep.Bonus, time.Since(start), c.GetBool("cache_hit"))

	c.JSON(http.StatusOK, types.ReportResponse{
		RulesetVersion: s.rules.Version,
		Report:         rep,
	})
}

// handleDirectional scores a pair as seen from the left party
func (s *server) handleDirectional(c *gin.Context) {
	start := time.Now()

	var req types.PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, bindError(err))
		return
	}
	if err := s.validateParties(map[string]synastry.Party{"left": req.Left, "right": req.Right}); err != nil {
		s.reject(c, err)
		return
	}

	res, err := s.analyzer.Directional(req)
	if err != nil {
		s.reject(c, err)
		return
	}

	s.observe(types.ModeDirectional, res.Orientation, res.Percent, res.Afflictions.Penalty, res.Modules)
	s.logger.EvaluationLogger(monitoring.RequestID(c), types.ModeDirectional, string(res.Orientation),
		res.Percent, res.Penalty, res.Bonus, time.Since(start), c.GetBool("cache_hit"))

	c.JSON(http.StatusOK, types.DirectionalResponse{
		RulesetVersion: s.rules.Version,
		Result:         res,
	})
}

// handleBatch scores one subject against every candidate and ranks them
func (s *server) handleBatch(c *gin.Context) {
	start := time.Now()

	var req types.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, bindError(err))
		return
	}
	if limit := s.cfg.Batch.MaxCandidates; len(req.Candidates) > limit {
		s.reject(c, apperrors.NewValidationError("too many candidates", map[string]string{
			"candidates": fmt.Sprintf("at most %d allowed, got %d", limit, len(req.Candidates)),
		}))
		return
	}

	parties := map[string]synastry.Party{"subject": req.Subject}
	seen := make(map[string]bool, len(req.Candidates))
	for i, cand := range req.Candidates {
		if seen[cand.ID] {
			s.reject(c, apperrors.NewValidationError("duplicate candidate id", map[string]string{
				fmt.Sprintf("candidates[%d].id", i): cand.ID,
			}))
			return
		}
		seen[cand.ID] = true
		parties[fmt.Sprintf("candidates[%d]", i)] = cand.Party
	}
	if err := s.validateParties(parties); err != nil {
		s.reject(c, err)
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = types.ModeReport
	}
	s.prom.BatchSize.Observe(float64(len(req.Candidates)))

	items, err := s.runner.Run(c.Request.Context(), req.Subject, req.Candidates, mode)
	if err != nil {
		s.reject(c, err)
		return
	}

	failed := batch.Failed(items)
	duration := time.Since(start)
	requestID := monitoring.RequestID(c)
	s.logger.BatchLogger(requestID, len(items), failed, duration)

	c.JSON(http.StatusOK, types.BatchResponse{
		RulesetVersion: s.rules.Version,
		RequestID:      requestID,
		Mode:           mode,
		Count:          len(items),
		Failed:         failed,
		DurationMs:     duration.Milliseconds(),
		Results:        items,
	})
}

func (s *server) handleTables(c *gin.Context) {
	c.JSON(http.StatusOK, types.NewTablesResponse(s.rules))
}

// validateParties checks the free-form profile strings of every named party
func (s *server) validateParties(parties map[string]synastry.Party) error {
	fields := make(map[string]string)
	for name, p := range parties {
		field := name + ".profile.birthDateTime"
		if err := s.security.ValidateField(field, p.Profile.BirthDateTime); err != nil {
			fields[field] = err.Error()
		}
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid profile fields", fields)
	}
	return nil
}

// reject answers with err, counting client mistakes as invalid input
func (s *server) reject(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	if appErr.Category == apperrors.CategoryValidation {
		s.metrics.IncrementInvalidInput()
	}
	apperrors.Abort(c, appErr)
}

// bindError turns a request decoding failure into a client error
func bindError(err error) error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		appErr := apperrors.NewValidationError("request body too large", map[string]string{
			"max_bytes": strconv.FormatInt(maxBytes.Limit, 10),
		})
		appErr.HTTPStatus = http.StatusRequestEntityTooLarge
		return appErr
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = "failed " + fe.Tag()
		}
		return apperrors.NewValidationError("request body failed validation", fields)
	}

	appErr := apperrors.ToAppError(err)
	if appErr.Category == apperrors.CategoryInternal {
		return apperrors.NewValidationError("request body could not be decoded", map[string]string{"body": err.Error()})
	}
	return appErr
}

// mountProfiling exposes pprof; only enabled through ENABLE_PROFILING
func mountProfiling(r *gin.Engine) {
	r.GET("/debug/pprof/*name", func(c *gin.Context) {
		switch strings.TrimPrefix(c.Param("name"), "/") {
		case "cmdline":
			pprof.Cmdline(c.Writer, c.Request)
		case "profile":
			pprof.Profile(c.Writer, c.Request)
		case "symbol":
			pprof.Symbol(c.Writer, c.Request)
		case "trace":
			pprof.Trace(c.Writer, c.Request)
		default:
			pprof.Index(c.Writer, c.Request)
		}
	})
}
