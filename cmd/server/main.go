package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mkaldis/go-token-service/authcode"
	redisauthcoderepo "github.com/mkaldis/go-token-service/authcode/redisrepo"
	fakeauthcoderepo "github.com/mkaldis/go-token-service/authcode/repofake"
	"github.com/mkaldis/go-token-service/clientauth"
	"github.com/mkaldis/go-token-service/clients"
	fakeclientrepo "github.com/mkaldis/go-token-service/clients/fakerepo"
	"github.com/mkaldis/go-token-service/endpoint"
	"github.com/mkaldis/go-token-service/grants"
	"github.com/mkaldis/go-token-service/internal/config"
	"github.com/mkaldis/go-token-service/oauth2"
	"github.com/mkaldis/go-token-service/server"
	"github.com/mkaldis/go-token-service/token"
	"github.com/mkaldis/go-token-service/token/refresh"
	redisrefreshrepo "github.com/mkaldis/go-token-service/token/refresh/redisrepo"
	refreshrepofake "github.com/mkaldis/go-token-service/token/refresh/repofake"
	"github.com/mkaldis/go-token-service/users"
	fakeuserrepo "github.com/mkaldis/go-token-service/users/repofake"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	setupLogging(cfg)
	displayAppname(cfg.GetAppName())

	handler, err := buildServer(cfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func loadConfig() (config.Config, error) {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		return config.LoadFile(path)
	}
	return config.New(), nil
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func buildServer(cfg config.Config) (*server.Server, error) {
	codeRepo, refreshRepo := buildStores(cfg)
	clientRepo := fakeclientrepo.NewFakeClientRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()

	signer, err := buildSigner(cfg)
	if err != nil {
		return nil, err
	}

	refreshMgr := refresh.NewManager(refreshRepo, cfg.GetDefaultRefreshTokenExpiry())

	authenticator, err := clientauth.NewAuthenticator(
		clientRepo,
		cfg.GetIssuer()+server.RouteOAuth2Token,
		clientauth.WithClockSkew(cfg.GetClockSkew()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[buildServer] NewAuthenticator")
	}

	validator, err := grants.NewValidator(codeRepo, refreshMgr, users.NewRepoVerifier(userRepo))
	if err != nil {
		return nil, errors.Wrap(err, "[buildServer] NewValidator")
	}

	issuer, err := token.NewIssuer(
		signer,
		refreshMgr,
		users.NewRepoClaimsProvider(userRepo),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		token.WithTokenExpiry(cfg.GetDefaultAccessTokenExpiry(), cfg.GetDefaultIDTokenExpiry()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[buildServer] NewIssuer")
	}

	tokenEndpoint, err := endpoint.New(authenticator, validator, issuer)
	if err != nil {
		return nil, errors.Wrap(err, "[buildServer] endpoint.New")
	}

	if cfg.GetEnv() == "DEV" {
		if err := seedDevData(clientRepo, userRepo); err != nil {
			return nil, errors.Wrap(err, "[buildServer] seedDevData")
		}
	}

	return server.New(cfg, tokenEndpoint, authenticator, issuer, refreshMgr)
}

// buildStores selects Redis-backed code and refresh token stores when an
// address is configured, in-memory stores otherwise.
func buildStores(cfg config.Config) (authcode.Repo, refresh.Repo) {
	addr := cfg.GetRedisAddr()
	if addr == "" {
		log.Warn().Msg("no REDIS_ADDR configured, using in-memory stores")
		return fakeauthcoderepo.NewFakeAuthCodeRepo(), refreshrepofake.NewFakeRefreshTokenRepo()
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	log.Info().Str("addr", addr).Msg("using redis stores")
	return redisauthcoderepo.NewRedisAuthCodeRepo(client), redisrefreshrepo.NewRedisRefreshTokenRepo(client)
}

func buildSigner(cfg config.Config) (token.Signer, error) {
	if secret := cfg.GetSigningSecret(); secret != "" {
		return token.NewHMACSigner(secret), nil
	}

	if keyPEM := cfg.GetSigningKeyPEM(); keyPEM != "" {
		keyPair, err := token.LoadKeyPairFromPEM(cfg.GetSigningKeyID(), keyPEM, "RS256")
		if err != nil {
			return nil, errors.Wrap(err, "[buildSigner] LoadKeyPairFromPEM")
		}
		return token.NewKeyPairSigner(keyPair), nil
	}

	// Ephemeral key: fine for development, tokens do not survive restarts.
	keyPair, err := token.GenerateRSAKeyPair(cfg.GetSigningKeyID(), 2048)
	if err != nil {
		return nil, errors.Wrap(err, "[buildSigner] GenerateRSAKeyPair")
	}
	log.Warn().Msg("no signing key configured, generated an ephemeral RSA key")
	return token.NewKeyPairSigner(keyPair), nil
}

// seedDevData registers a demo confidential client and user so the
// endpoint is usable out of the box in development.
func seedDevData(clientRepo clients.Repo, userRepo users.Repo) error {
	ctx := context.Background()

	secretHash, err := users.HashPassword("dev-secret")
	if err != nil {
		return err
	}
	if err := clientRepo.Upsert(ctx, &clients.Client{
		ID:          "dev-client",
		Type:        clients.ClientTypeConfidential,
		Description: "Development client",
		SecretHash:  secretHash,
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.ClientCredentialsGrant,
			oauth2.RefreshTokenGrant,
			oauth2.PasswordGrant,
		},
		Scopes: []string{"openid", "profile", "email", "api:read", "api:write"},
	}); err != nil {
		return err
	}

	passwordHash, err := users.HashPassword("Password123")
	if err != nil {
		return err
	}
	if err := userRepo.Upsert(ctx, &users.User{
		ID:           "dev-user",
		Username:     "dev",
		Email:        "dev@example.com",
		PasswordHash: passwordHash,
		FirstName:    "Dev",
		LastName:     "User",
		Verified:     true,
	}); err != nil {
		return err
	}

	log.Info().Msg("seeded dev client (dev-client/dev-secret) and user (dev/Password123)")
	return nil
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("listen and serve")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "[shutdown] server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
