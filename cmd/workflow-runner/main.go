package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/kestrelsec/workflow-runner/internal/config"
	"github.com/kestrelsec/workflow-runner/internal/database"
	"github.com/kestrelsec/workflow-runner/internal/database/migrations"
	"github.com/kestrelsec/workflow-runner/internal/store"
	"github.com/kestrelsec/workflow-runner/pkg/shared/httpclient"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/actions"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/credentials"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/executor"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/httpadapter"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/llm"
	"github.com/kestrelsec/workflow-runner/pkg/workflow/oauth"
)

func main() {
	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLogger.Sync() }()

	if err := run(zapLogger); err != nil {
		zapLogger.Fatal("workflow runner exited", zap.Error(err))
	}
}

func run(zapLogger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	settings, err := config.NewWatcher(os.Getenv("CONFIG_OVERLAY_PATH"), zapLogger)
	if err != nil {
		return err
	}
	defer func() { _ = settings.Close() }()

	db, err := database.Connect(cfg.Database, zapLogger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := migrations.Up(db.DB); err != nil {
		return err
	}

	cipher := credentials.NewCipher(cfg.CredentialsSecret)
	credentialStore := credentials.NewStore(db, cipher)
	// IdP token requests are held under the process-wide refresh mutex,
	// so they get a tighter budget than integration calls.
	tokenManager := oauth.NewManager(credentialStore, httpclient.NewClientWithTimeout(15*time.Second),
		cfg.MSTeamsOAuthClientID, cfg.MSTeamsOAuthClientSecret)
	adapter := httpadapter.New(httpclient.NewDefaultClient(), tokenManager)
	completer := llm.NewClient(cfg.DefaultAIProviderAPIKey)

	persistence := store.New(db)
	engine := executor.NewEngine(
		persistence,
		persistence,
		credentialStore,
		adapter,
		completer,
		actions.MailConfig{APIKey: cfg.ResendAPIKey, SenderEmail: cfg.ResendEmail},
		zapr.NewLogger(zapLogger),
	)

	srv := &server{
		runner:   engine,
		webhooks: persistence,
		jwtKey:   []byte(cfg.JWTVerificationKey),
		logger:   zapLogger,
	}

	addr := fmt.Sprintf(":%d", cfg.ServicePort)
	zapLogger.Info("workflow runner listening",
		zap.String("addr", addr),
		zap.String("log_level", settings.Current().LogLevel),
	)
	return http.ListenAndServe(addr, srv.routes())
}
