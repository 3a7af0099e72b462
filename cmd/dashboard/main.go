// Read-only operations dashboard: reconciliation progress and open
// transactions, served separately from the reconciliation API.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/config"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/logging"
	"github.com/ledgerline/bankrecon-backend/internal/infrastructure/storage"
)

type Dashboard struct {
	repo   storage.Repository
	logger *slog.Logger
}

func NewDashboard(repo storage.Repository, logger *slog.Logger) *Dashboard {
	return &Dashboard{repo: repo, logger: logger}
}

// StatsResponse summarizes ledger state for the dashboard front page.
type StatsResponse struct {
	OpenTransactions       int                `json:"open_transactions"`
	ReconciledTransactions int                `json:"reconciled_transactions"`
	TotalUnallocated       float64            `json:"total_unallocated"`
	TotalLinks             int                `json:"total_links"`
	LinksByKind            map[string]int     `json:"links_by_kind"`
	AllocatedByKind        map[string]float64 `json:"allocated_by_kind"`
}

// OpenTransactionResponse is one open statement row.
type OpenTransactionResponse struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Description string  `json:"description,omitempty"`
	Direction   string  `json:"direction"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Unallocated float64 `json:"unallocated_amount"`
}

func (d *Dashboard) getStats(c *gin.Context) {
	stats, err := d.repo.GetStats(c.Request.Context())
	if err != nil {
		d.logger.Error("failed to fetch stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch stats"})
		return
	}

	response := StatsResponse{
		OpenTransactions:       stats.OpenTransactions,
		ReconciledTransactions: stats.ReconciledTransactions,
		TotalUnallocated:       stats.TotalUnallocated,
		TotalLinks:             stats.TotalLinks,
		LinksByKind:            make(map[string]int, len(stats.LinksByKind)),
		AllocatedByKind:        make(map[string]float64, len(stats.AllocatedByKind)),
	}
	for kind, count := range stats.LinksByKind {
		response.LinksByKind[string(kind)] = count
	}
	for kind, amount := range stats.AllocatedByKind {
		response.AllocatedByKind[string(kind)] = amount
	}

	c.JSON(http.StatusOK, response)
}

func (d *Dashboard) getOpenTransactions(c *gin.Context) {
	accountID := c.Query("account")
	if accountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "account query parameter is required"})
		return
	}

	transactions, err := d.repo.ListOpenTransactions(c.Request.Context(), accountID)
	if err != nil {
		d.logger.Error("failed to list open transactions", "account", accountID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch transactions"})
		return
	}

	response := make([]OpenTransactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		direction := "Dr"
		if tx.IsCredit() {
			direction = "Cr"
		}
		response = append(response, OpenTransactionResponse{
			ID:          tx.ID,
			Date:        tx.Date.Format("2006-01-02"),
			Description: tx.Description,
			Direction:   direction,
			Amount:      tx.Amount(),
			Currency:    tx.Currency,
			Unallocated: tx.Unallocated,
		})
	}

	c.JSON(http.StatusOK, response)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(configPath)
	logger := logging.NewLoggerWithSystem(cfg.Observability.Logging, "dashboard")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	dashboard := NewDashboard(store, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/api/health"},
	}))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})
		api.GET("/stats", dashboard.getStats)
		api.GET("/transactions/open", dashboard.getOpenTransactions)
	}

	addr := fmt.Sprintf(":%d", cfg.Dashboard.Port)
	logger.Info("starting dashboard server", "addr", addr)
	if err := router.Run(addr); err != nil {
		logger.Error("failed to start dashboard", "error", err)
		os.Exit(1)
	}
}
