package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"rotation/internal/backtest"
	"rotation/internal/domain"
	"rotation/internal/util"
)

type backtestRequest struct {
	Universe  *string  `json:"universe"`
	Benchmark *string  `json:"benchmark"`
	StartDate *string  `json:"startDate"`
	TopN      *int     `json:"topN"`
	TxCostBps *float64 `json:"txCostBps"`
	Refresh   bool     `json:"refresh"`
}

type backtestResponse struct {
	Summary domain.RunSummary     `json:"summary"`
	Periods []domain.PeriodRecord `json:"periods"`
}

func (m ApiHandler) backtest(c *gin.Context) {
	ctx := c.Request.Context()

	req := backtestRequest{}
	if err := c.ShouldBindJSON(&req); err != nil {
		returnErrorJsonCode(fmt.Errorf("failed to parse request: %w", err), c, 400)
		return
	}

	cfg := *m.BaseConfig
	if req.Universe != nil {
		cfg.Universe = *req.Universe
	}
	if req.Benchmark != nil {
		cfg.Benchmark = *req.Benchmark
	}
	if req.StartDate != nil {
		cfg.StartDate = *req.StartDate
	}
	if req.TopN != nil {
		cfg.TopN = *req.TopN
	}
	if req.TxCostBps != nil {
		cfg.TxCostBps = *req.TxCostBps
	}

	if err := cfg.Validate(); err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	universeSet, err := m.UniverseService.Load(cfg.Universe)
	if err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	startDate, err := util.ParseDate(cfg.StartDate)
	if err != nil {
		returnErrorJsonCode(err, c, 400)
		return
	}

	store, err := m.PricingService.AssembleStore(
		ctx, universeSet.Symbols, cfg.Benchmark, startDate, time.Now().UTC(), req.Refresh)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	result, err := backtest.NewEngine(cfg.Weights).Run(ctx, &cfg, store, universeSet)
	if err != nil {
		var rangeErr domain.InsufficientRangeError
		if errors.As(err, &rangeErr) {
			returnErrorJsonCode(err, c, 400)
			return
		}
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, backtestResponse{
		Summary: result.Summary,
		Periods: result.Periods,
	})
}
