package domain

import (
	"context"
	"net/url"
)

// PageSplitter turns an uploaded document into ordered page blobs.
type PageSplitter interface {
	Split(ctx context.Context, data []byte, filename string) ([]Page, error)
}

// Marketplace is the crowdsourcing service tasks are posted to.
type Marketplace interface {
	// CreateTask registers a task and returns its external id
	CreateTask(ctx context.Context, spec TaskSpec) (string, error)

	// PollTask returns the assignments currently held against the task
	PollTask(ctx context.Context, taskID string) ([]Assignment, error)

	// DisableTask withdraws the task from the marketplace
	DisableTask(ctx context.Context, taskID string) error
}

// PaymentGateway is the escrow payment provider.
type PaymentGateway interface {
	InstallCallerInstruction(ctx context.Context) (string, error)
	InstallRecipientInstruction(ctx context.Context) (string, error)
	BuildRedirectURL(params url.Values) (string, error)

	// VerifySignature asks the gateway whether the callback query was signed by it
	VerifySignature(ctx context.Context, endpointURL, queryString string) (bool, error)

	Capture(ctx context.Context, req CaptureRequest) (*CaptureResult, error)
}

// SnapshotBackend persists whole named snapshots.
type SnapshotBackend interface {
	Save(ctx context.Context, name string, data []byte) error
	// Load returns ErrSnapshotNotFound when nothing was saved under name
	Load(ctx context.Context, name string) ([]byte, error)
	Close() error
}
