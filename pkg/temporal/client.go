package temporal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/pump-pill/arenax/pkg/retry"
	"github.com/pump-pill/arenax/pkg/utils"
)

// Queue and workflow ID conventions.
const (
	DefaultNamespace = "arenax"

	// QueueEpochs hosts all epoch lifecycle workflows and activities.
	QueueEpochs = "epochs"

	// WorkflowIDCloseEpoch is the close workflow ID pattern. One ID per epoch
	// plus a reject-duplicate reuse policy means the close sequence runs at
	// most once per epoch no matter how many schedulers fire.
	WorkflowIDCloseEpoch = "epoch:close:%d"
)

// Client wraps the Temporal client used to drive epoch close workflows.
type Client struct {
	TClient   client.Client
	Namespace string
	HostPort  string
	logger    *zap.Logger
}

// NewClient connects to Temporal with retry, from TEMPORAL_HOSTPORT and
// TEMPORAL_NAMESPACE.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	host := utils.Env("TEMPORAL_HOSTPORT", "localhost:7233")
	ns := utils.Env("TEMPORAL_NAMESPACE", DefaultNamespace)

	loggerWrapper := NewZapAdapter(logger)

	logger.Info("Connecting to Temporal", zap.String("host", host), zap.String("namespace", ns))

	var tClient client.Client
	err := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "temporal_connection", func() error {
		var err error
		tClient, err = Dial(connCtx, host, ns, loggerWrapper)
		if err != nil {
			return err
		}
		if _, err = tClient.CheckHealth(connCtx, nil); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		TClient:   tClient,
		Namespace: ns,
		HostPort:  host,
		logger:    logger,
	}, nil
}

// Dial connects to Temporal using the provided hostPort and namespace.
func Dial(ctx context.Context, hostPort, namespace string, logger log.Logger) (client.Client, error) {
	return client.DialContext(
		ctx,
		client.Options{
			HostPort:  hostPort,
			Namespace: namespace,
			Logger:    logger,
		},
	)
}

// CloseEpochWorkflowID returns the workflow ID for closing the given epoch.
func (c *Client) CloseEpochWorkflowID(epochIndex uint64) string {
	return fmt.Sprintf(WorkflowIDCloseEpoch, epochIndex)
}

// EnsureNamespace ensures the Temporal namespace exists, creating it if necessary.
func (c *Client) EnsureNamespace(ctx context.Context, retention time.Duration) error {
	nsClient, err := client.NewNamespaceClient(client.Options{
		HostPort: c.HostPort,
		Logger:   NewZapAdapter(c.logger),
	})
	if err != nil {
		return fmt.Errorf("failed to create namespace client: %w", err)
	}
	defer nsClient.Close()

	_, err = nsClient.Describe(ctx, c.Namespace)
	if err == nil {
		return nil
	}

	var notFound *serviceerror.NamespaceNotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe namespace: %w", err)
	}

	err = nsClient.Register(ctx, &workflowservice.RegisterNamespaceRequest{
		Namespace:                        c.Namespace,
		WorkflowExecutionRetentionPeriod: durationpb.New(retention),
	})
	if err != nil {
		return fmt.Errorf("failed to register namespace: %w", err)
	}

	// Wait for namespace to be available
	time.Sleep(2 * time.Second)
	return c.EnsureNamespace(ctx, retention)
}

// Close closes the underlying Temporal client.
func (c *Client) Close() {
	if c.TClient != nil {
		c.TClient.Close()
	}
}
