package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRouter wires middleware and routes. mode is a gin mode; empty means
// release.
func SetupRouter(h *Handler, mode string, log logrus.FieldLogger) *gin.Engine {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	api := r.Group("/api/v1")
	{
		account := api.Group("/account")
		{
			account.POST("/open", h.OpenAccount)
			account.GET("/balance", h.GetBalance)
			account.POST("/deposit", h.Deposit)
			account.POST("/withdraw", h.Withdraw)
			account.POST("/deposit/request", h.RequestDeposit)
			account.POST("/deposit/confirm", h.ConfirmDeposit)
			account.POST("/deposit/fail", h.FailDeposit)
		}

		games := api.Group("/games")
		{
			games.GET("", h.ListGames)
			games.POST("/blackjack/play", h.PlayBlackjack)
			games.POST("/roulette/bet", h.BetRoulette)
			games.POST("/slots/spin", h.SpinSlots)
		}

		history := api.Group("/history")
		{
			history.GET("/bets", h.ListBets)
			history.GET("/transactions", h.ListTransactions)
		}

		api.GET("/admin/audit", h.Audit)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
