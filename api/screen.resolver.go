package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"rotation/internal/domain"
	"rotation/internal/ranking"
	"rotation/internal/screen"
)

type screenRequest struct {
	Universe   *string `json:"universe"`
	Benchmark  *string `json:"benchmark"`
	TopN       *int    `json:"topN"`
	Expression string  `json:"expression"`
	Refresh    bool    `json:"refresh"`
}

type screenResponse struct {
	AsOf    string            `json:"asOf"`
	RiskOn  bool              `json:"riskOn"`
	Rows    []screen.Row      `json:"rows"`
	BuyList domain.HoldingSet `json:"buyList"`
	Summary screen.Summary    `json:"summary"`
}

func (m ApiHandler) screen(c *gin.Context) {
	ctx := c.Request.Context()

	req := screenRequest{}
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
	if req.TopN != nil {
		cfg.TopN = *req.TopN
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

	now := time.Now().UTC()
	store, err := m.PricingService.AssembleStore(
		ctx, universeSet.Symbols, cfg.Benchmark, now, now, req.Refresh)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	service := screen.NewService(ranking.NewService(cfg.Weights))
	result, err := service.Run(ctx, store, universeSet, cfg.TopN, req.Expression)
	if err != nil {
		returnErrorJson(err, c)
		return
	}

	c.JSON(200, screenResponse{
		AsOf:    result.AsOf.Format(time.DateOnly),
		RiskOn:  result.Summary.Regime.RiskOn,
		Rows:    result.Rows,
		BuyList: result.BuyList,
		Summary: result.Summary,
	})
}
