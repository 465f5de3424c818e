package types

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/pump-pill/arenax/pkg/db/rewardstore"
	"github.com/pump-pill/arenax/pkg/temporal"
)

// User is an admin console user.
type User struct {
	Username string `json:"username"`
	Hash     []byte `json:"hash"`
	Role     string `json:"role"`
}

type App struct {
	// Reward store (epochs + grants)
	RewardDB *rewardstore.DB

	// Temporal client for launching epoch close workflows
	TemporalClient *temporal.Client

	// Cron drives the expiry scan that launches close workflows.
	Cron     *cron.Cron
	CronSpec string

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// StartCloseWorkflow launches the close workflow for an epoch. The per-epoch
// workflow ID with a reject-duplicate reuse policy makes concurrent launches
// collapse into one execution; an already-started error is success.
func (a *App) StartCloseWorkflow(ctx context.Context, epochIndex uint64) error {
	opts := client.StartWorkflowOptions{
		ID:                    a.TemporalClient.CloseEpochWorkflowID(epochIndex),
		TaskQueue:             temporal.QueueEpochs,
		WorkflowIDReusePolicy: enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	_, err := a.TemporalClient.TClient.ExecuteWorkflow(ctx, opts, "CloseEpochWorkflow",
		struct {
			EpochIndex uint64 `json:"epochIndex"`
		}{EpochIndex: epochIndex})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return nil
		}
		return err
	}

	a.Logger.Info("Started close workflow", zap.Uint64("epoch", epochIndex))
	return nil
}

// ScanExpiredEpochs launches close workflows for every active epoch whose
// window has ended.
func (a *App) ScanExpiredEpochs(ctx context.Context) error {
	expired, err := a.RewardDB.ExpiredActiveEpochs(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	for _, w := range expired {
		if err := a.StartCloseWorkflow(ctx, w.Index); err != nil {
			a.Logger.Error("Failed to start close workflow",
				zap.Uint64("epoch", w.Index),
				zap.Error(err))
		}
	}
	return nil
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	a.Cron.Start()
	a.Logger.Info("Epoch expiry scan started", zap.String("cronSpec", a.CronSpec))

	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	<-a.Cron.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.RewardDB.Close()
	a.TemporalClient.Close()

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("Admin shut down")
}
