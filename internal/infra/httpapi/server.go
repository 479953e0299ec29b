// Package httpapi exposes the verification pipeline over HTTP.
package httpapi

import (
	"context"
	"time"

	"notary/internal/config"
	"notary/internal/domain"
	"notary/internal/infra/anchor"
	"notary/internal/infra/anchor/gatewayl2"
	"notary/internal/infra/cachemem"
	"notary/internal/infra/cacheredis"
	"notary/internal/infra/db"
	"notary/internal/infra/gateway"
	"notary/internal/infra/policyopa"
	"notary/internal/infra/prover"
	"notary/internal/usecase"

	"github.com/gin-gonic/gin"
)

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	verifyUC       *usecase.VerifyReceipt
	verifications  domain.VerificationRepository
	anchorAttempts domain.AnchorAttemptRepository

	initErr error
}

func NewServer(cfg config.Config, store *db.Store) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{cfg: cfg, store: store, r: r}
	s.initDeps()
	s.routes()
	return s
}

type ServerDeps struct {
	Verify         *usecase.VerifyReceipt
	Verifications  domain.VerificationRepository
	AnchorAttempts domain.AnchorAttemptRepository
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:            cfg,
		r:              r,
		verifyUC:       deps.Verify,
		verifications:  deps.Verifications,
		anchorAttempts: deps.AnchorAttempts,
	}
	s.routes()
	return s
}

func (s *Server) initDeps() {
	var source usecase.ReceiptSource
	var anchorProvider anchor.Provider
	if s.cfg.GatewayAPI != "" {
		client, err := gateway.NewClient(s.cfg.GatewayAPI, s.cfg.GatewayAuthKey, nil)
		if err != nil {
			s.initErr = err
			return
		}
		source = client
		anchorProvider = gatewayl2.NewProvider(client)
	}

	var verifications domain.VerificationRepository
	var anchorAttempts domain.AnchorAttemptRepository
	if s.store != nil && s.store.DB != nil {
		verifications = db.NewVerificationRepository(s.store.DB)
		anchorAttempts = db.NewAnchorAttemptRepository(s.store.DB)
	}

	anchorSvc := anchor.NewService(
		anchorProvider,
		time.Duration(s.cfg.AnchorTimeoutSeconds)*time.Second,
		anchorAttempts,
	)
	var anchorer usecase.Anchorer
	if s.cfg.AnchorEnabled {
		anchorer = anchorSvc
	}

	cache := s.initCache()

	var policy usecase.PolicyEngine
	if s.cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), s.cfg.PolicyBundlePath, s.cfg.PolicyBundleID)
		if err != nil {
			s.initErr = err
			return
		}
		policy = engine
	}

	s.verifications = verifications
	s.anchorAttempts = anchorAttempts
	s.verifyUC = &usecase.VerifyReceipt{
		Source:        source,
		Anchorer:      anchorer,
		Prover:        prover.NewRunner(s.cfg.ProverCmd, time.Duration(s.cfg.ProverTimeoutSeconds)*time.Second),
		Policy:        policy,
		Verifications: verifications,
		Cache:         cache,
		CacheTTL:      time.Duration(s.cfg.CacheTTLSeconds) * time.Second,
	}
}

func (s *Server) initCache() domain.VerificationCache {
	if s.cfg.RedisAddr != "" {
		cache, err := cacheredis.New(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB)
		if err == nil {
			return cache
		}
	}
	return cachemem.New(cachemem.Config{})
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.DB != nil {
			dbMode = "db"
		}
		c.JSON(200, gin.H{"status": "ok", "mode": dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/verify", s.handleVerify)
		v1.POST("/receipts/:receipt_id/verify", s.handleVerifyByID)
		v1.GET("/verifications/:receipt_id", s.handleGetVerification)
		v1.GET("/anchors/:receipt_id", s.handleListAnchors)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Run() error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.r.Run(s.cfg.HTTPAddr)
}
