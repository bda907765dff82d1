package payment

import (
	"context"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/recapturedocs/recapturedocs/internal/domain"
)

// SandboxGateway is an in-memory domain.PaymentGateway for development and
// tests. Captures are idempotent on Reference.
type SandboxGateway struct {
	mu          sync.Mutex
	pipelineURL string
	captures    []domain.CaptureRequest
	results     map[string]*domain.CaptureResult
	installs    int

	// Verified is the answer VerifySignature gives.
	Verified bool
	// Fail, when set, is returned wrapped from every gateway call.
	Fail error
	// FailCapture, when set, fails only Capture.
	FailCapture error
}

// NewSandboxGateway creates a sandbox that verifies every signature.
func NewSandboxGateway(pipelineURL string) *SandboxGateway {
	return &SandboxGateway{
		pipelineURL: pipelineURL,
		results:     make(map[string]*domain.CaptureResult),
		Verified:    true,
	}
}

func (g *SandboxGateway) InstallCallerInstruction(ctx context.Context) (string, error) {
	return g.install("CALLER")
}

func (g *SandboxGateway) InstallRecipientInstruction(ctx context.Context) (string, error) {
	return g.install("RECIPIENT")
}

func (g *SandboxGateway) install(prefix string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return "", domain.PaymentGatewayFailure("sandbox install instruction", g.Fail)
	}
	g.installs++
	return prefix + "-" + uuid.NewString(), nil
}

func (g *SandboxGateway) BuildRedirectURL(params url.Values) (string, error) {
	return buildRedirectURL(g.pipelineURL, params)
}

func (g *SandboxGateway) VerifySignature(ctx context.Context, endpointURL, queryString string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return false, domain.PaymentGatewayFailure("sandbox verify signature", g.Fail)
	}
	return g.Verified, nil
}

func (g *SandboxGateway) Capture(ctx context.Context, req domain.CaptureRequest) (*domain.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail != nil {
		return nil, domain.PaymentGatewayFailure("sandbox capture", g.Fail)
	}
	if g.FailCapture != nil {
		return nil, domain.PaymentGatewayFailure("sandbox capture", g.FailCapture)
	}
	if res, ok := g.results[req.Reference]; ok && req.Reference != "" {
		copied := *res
		return &copied, nil
	}
	g.captures = append(g.captures, req)
	res := &domain.CaptureResult{TransactionID: "TXN-" + uuid.NewString(), Status: "Success"}
	if req.Reference != "" {
		g.results[req.Reference] = res
	}
	copied := *res
	return &copied, nil
}

// Captures lists the distinct captures performed.
func (g *SandboxGateway) Captures() []domain.CaptureRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.CaptureRequest(nil), g.captures...)
}

// Installs counts instruction tokens handed out.
func (g *SandboxGateway) Installs() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.installs
}
