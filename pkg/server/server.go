// Package server contains the full set of handler functions and routes
// supported by the http api.
package server

import (
	"context"
	"net/http"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/spendgate/spendgate/config"
	"github.com/spendgate/spendgate/internal/util"
	"github.com/spendgate/spendgate/pkg/server/framework"
	"github.com/spendgate/spendgate/pkg/server/middleware"
	"github.com/spendgate/spendgate/pkg/server/router"
	"github.com/spendgate/spendgate/pkg/service"
)

const (
	HealthPrefix    = "/health"
	ReadinessPrefix = "/readiness"
	JWKSPath        = "/.well-known/jwks.json"
	V1Prefix        = "/v1"
	ChallengesPath  = V1Prefix + "/challenges"
	ExchangesPath   = V1Prefix + "/exchanges"
	ExpensesPath    = V1Prefix + "/expenses"
	ExpensePath     = ExpensesPath + "/:id"
	ApprovalPath    = ExpensePath + "/approval"
	AuditPath       = V1Prefix + "/audit"
)

// SpendgateServer exposes all dependencies needed to run a http server and all
// its services.
type SpendgateServer struct {
	*config.ServerConfig
	*service.SpendgateService
	*framework.Server
}

// NewSpendgateServer does two things: instantiates all services and registers
// their HTTP bindings.
func NewSpendgateServer(shutdown chan os.Signal, cfg config.SpendgateConfig) (*SpendgateServer, error) {
	engine := setUpEngine(cfg.Server, shutdown)
	httpServer := framework.NewServer(cfg.Server, engine, shutdown)

	spendgate, err := service.InstantiateSpendgateService(context.Background(), cfg.Services, clock.New())
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to instantiate spendgate service")
	}

	// service-level routers
	engine.GET(HealthPrefix, router.Health)
	engine.GET(ReadinessPrefix, router.Readiness(spendgate.GetServices()))

	if err = registerAPIRoutes(httpServer, spendgate); err != nil {
		return nil, util.LoggingErrorMsg(err, "unable to register API routes")
	}

	return &SpendgateServer{
		Server:           httpServer,
		SpendgateService: spendgate,
		ServerConfig:     &cfg.Server,
	}, nil
}

func registerAPIRoutes(httpServer *framework.Server, spendgate *service.SpendgateService) error {
	challengeRouter, err := router.NewChallengeRouter(spendgate.Challenge)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating challenge router")
	}
	exchangeRouter, err := router.NewExchangeRouter(spendgate.Exchange)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating exchange router")
	}
	wellKnownRouter, err := router.NewWellKnownRouter(spendgate.Token)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating well-known router")
	}
	expenseRouter, err := router.NewExpenseRouter(spendgate.Expense)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating expense router")
	}
	auditRouter, err := router.NewAuditRouter(spendgate.Audit)
	if err != nil {
		return util.LoggingErrorMsg(err, "creating audit router")
	}

	httpServer.Handle(http.MethodPut, ChallengesPath, challengeRouter.CreateChallenge)
	httpServer.Handle(http.MethodPut, ExchangesPath, exchangeRouter.ExchangePresentation)
	httpServer.Handle(http.MethodGet, JWKSPath, wellKnownRouter.GetKeySet)
	httpServer.Handle(http.MethodPut, ExpensesPath, expenseRouter.CreateExpense)
	httpServer.Handle(http.MethodGet, ExpensesPath, expenseRouter.ListExpenses)
	httpServer.Handle(http.MethodGet, ExpensePath, expenseRouter.GetExpense)
	httpServer.Handle(http.MethodPut, ApprovalPath, expenseRouter.ApproveExpense)
	httpServer.Handle(http.MethodGet, AuditPath, auditRouter.ListAuditEntries)
	return nil
}

// setUpEngine creates the gin engine and sets up the middleware based on config.
func setUpEngine(cfg config.ServerConfig, shutdown chan os.Signal) *gin.Engine {
	middlewares := gin.HandlersChain{
		gin.Recovery(),
		middleware.Errors(shutdown),
		middleware.Logger(logrus.StandardLogger()),
	}
	if cfg.EnableAllowAllCORS {
		middlewares = append(middlewares, middleware.CORS())
	}

	switch cfg.Environment {
	case config.EnvironmentDev:
		gin.SetMode(gin.DebugMode)
	case config.EnvironmentTest:
		gin.SetMode(gin.TestMode)
	case config.EnvironmentProd:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middlewares...)
	return engine
}
