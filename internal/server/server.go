package server

import (
	"context"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/gridlabs/grid-api/internal/audit"
	"github.com/gridlabs/grid-api/internal/chain"
	awsclient "github.com/gridlabs/grid-api/internal/client/aws"
	"github.com/gridlabs/grid-api/internal/config"
	"github.com/gridlabs/grid-api/internal/custody"
	"github.com/gridlabs/grid-api/internal/delegation"
	"github.com/gridlabs/grid-api/internal/handlers"
	"github.com/gridlabs/grid-api/internal/logger"
)

// Handler Definitions
var (
	delegationHandler *handlers.DelegationHandler
	walletHandler     *handlers.WalletHandler
	healthHandler     *handlers.HealthHandler
)

// InitializeHandlers wires the chain, custody and audit collaborators
// into the HTTP handlers. watchCtx bounds background confirmation
// watching; cancel it on shutdown.
func InitializeHandlers(watchCtx context.Context, cfg *config.Config) {
	ethClient, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		logger.Fatal("Unable to connect to chain RPC", zap.Error(err))
	}

	ownerKey := resolveOwnerKey(watchCtx, cfg)
	submitter, err := chain.NewWallet(ethClient, cfg.ChainID, ownerKey)
	if err != nil {
		logger.Fatal("Unable to initialize owner wallet", zap.Error(err))
	}

	reader := chain.NewEthReader(ethClient, cfg.RegistryAddress, 0)
	session := custody.NewSession(custody.NewClient(cfg.CustodyBaseURL, cfg.CustodyAPIKey))

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(watchCtx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Unable to create audit database pool", zap.Error(err))
		}
		recorder = audit.NewPGRecorder(pool)
	}

	service := delegation.NewService(watchCtx, delegation.ServiceConfig{
		Reader:                    reader,
		Submitter:                 submitter,
		Session:                   session,
		Recorder:                  recorder,
		RegistryAddress:           cfg.RegistryAddress,
		Implementation:            cfg.RegistryImplementation,
		DeprecatedImplementations: cfg.DeprecatedImplementations,
		PaymasterAddress:          cfg.PaymasterAddress,
		USDCTokenAddress:          cfg.USDCTokenAddress,
		SettleDelay:               cfg.SettleDelay,
		MinOperatorEthWei:         cfg.MinOperatorEthWei,
		MinOperatorUSDC:           cfg.MinOperatorUSDC,
		MinHotWalletEthWei:        cfg.MinHotWalletEthWei,
	})

	delegationHandler = handlers.NewDelegationHandler(service)
	walletHandler = handlers.NewWalletHandler(session)
	healthHandler = handlers.NewHealthHandler(ethClient, session)
}

// resolveOwnerKey fetches the owner EOA private key from Secrets Manager
// when an ARN is configured, falling back to the environment for local
// deployments.
func resolveOwnerKey(ctx context.Context, cfg *config.Config) string {
	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		logger.Warn("Secrets Manager unavailable, using environment key", zap.Error(err))
		return cfg.OwnerPrivateKey
	}

	key, err := secrets.GetSecretString(ctx, "OWNER_PRIVATE_KEY_ARN", "OWNER_PRIVATE_KEY")
	if err != nil {
		logger.Fatal("Unable to resolve owner private key", zap.Error(err))
	}
	return key
}

// InitializeRoutes registers the API surface on the router.
func InitializeRoutes(router *gin.Engine) {
	router.Use(configureCORS())

	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		entry := v1.Group("/delegation/:entry")
		{
			entry.GET("/status", delegationHandler.GetStatus)
			entry.GET("/operations", delegationHandler.GetOperations)
			entry.POST("/mint", delegationHandler.Mint)
			entry.POST("/access-list", delegationHandler.SetAccessList)
			entry.POST("/signers", delegationHandler.SetSigners)
			entry.POST("/paymaster/approve", delegationHandler.ApprovePaymaster)
			entry.POST("/paymaster/revoke", delegationHandler.RevokePaymaster)
		}

		wallets := v1.Group("/wallets")
		{
			wallets.GET("", walletHandler.ListWallets)
			wallets.POST("/select", walletHandler.SelectWallet)
			wallets.POST("/activate", walletHandler.ActivateWallet)
			wallets.POST("/deactivate", walletHandler.DeactivateWallet)
			wallets.POST("/limits", walletHandler.SetLimits)
			wallets.POST("/export", walletHandler.ExportKey)
			wallets.POST("/rename", walletHandler.RenameWallet)
		}
	}
}

// configureCORS returns a configured CORS middleware
func configureCORS() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS")
	if originsEnv == "" {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	} else {
		origins := strings.Split(originsEnv, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		corsConfig.AllowOrigins = origins
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"}
	corsConfig.AllowCredentials = true

	return cors.New(corsConfig)
}
