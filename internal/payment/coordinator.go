package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/recapturedocs/recapturedocs/internal/domain"
	"github.com/recapturedocs/recapturedocs/internal/job"
	"github.com/recapturedocs/recapturedocs/internal/observability"
)

// StatusSuccess is the callback status for a successful single-use authorization.
const StatusSuccess = "SC"

// PipelineSingleUse names the single-use payment pipeline.
const PipelineSingleUse = "SingleUse"

// Outcome is the terminal view state of a payment completion.
type Outcome string

const (
	OutcomeDeclined          Outcome = "declined"
	OutcomeAuthorized        Outcome = "authorized"
	OutcomeAlreadyAuthorized Outcome = "already_authorized"
)

// Callback carries the parameters the gateway appends to the return URL.
type Callback struct {
	Status           string
	TokenID          string
	SignatureVersion string
	SignatureMethod  string
	// EndpointURL is the return URL as the gateway saw it, without query.
	EndpointURL string
	// QueryString is the raw, still-encoded query of the callback.
	QueryString string
}

// CallbackFromQuery extracts the callback fields from the return URL query.
func CallbackFromQuery(endpointURL, rawQuery string) (Callback, error) {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Callback{}, domain.ValidationError("malformed callback query", err)
	}
	return Callback{
		Status:           q.Get("status"),
		TokenID:          q.Get("tokenID"),
		SignatureVersion: q.Get("signatureVersion"),
		SignatureMethod:  q.Get("signatureMethod"),
		EndpointURL:      endpointURL,
		QueryString:      rawQuery,
	}, nil
}

// Store is the subset of the job store the coordinator needs.
type Store interface {
	Get(id string) (*job.Job, error)
	Mutate(ctx context.Context, id string, fn func(j *job.Job) error) (*job.Job, error)
}

// Config holds coordinator settings.
type Config struct {
	CallerKey        string
	SignatureVersion string
	SignatureMethod  string
	// ReturnURL builds the absolute URL the gateway redirects back to.
	ReturnURL func(jobID string) string
}

// Coordinator runs the escrow flow for completed jobs.
type Coordinator struct {
	gateway     domain.PaymentGateway
	marketplace domain.Marketplace
	store       Store
	cfg         Config
	logger      *observability.Logger
}

// NewCoordinator creates a coordinator. The marketplace is polled to confirm
// completion before any instruction is installed.
func NewCoordinator(gateway domain.PaymentGateway, mp domain.Marketplace, store Store, cfg Config, logger *observability.Logger) *Coordinator {
	if cfg.SignatureVersion == "" {
		cfg.SignatureVersion = "2"
	}
	if cfg.SignatureMethod == "" {
		cfg.SignatureMethod = "RSA-SHA1"
	}
	return &Coordinator{gateway: gateway, marketplace: mp, store: store, cfg: cfg, logger: logger}
}

// InitiatePayment installs the caller and recipient instructions and returns
// the URL the payer is sent to. Tokens already on the job are reused. The job
// must be complete when polled under the job lock; a gateway failure leaves
// the job unchanged.
func (c *Coordinator) InitiatePayment(ctx context.Context, jobID string) (string, error) {
	log := c.logger.WithJob(jobID).WithOperation("initiate_payment")

	var redirect string
	_, err := c.store.Mutate(ctx, jobID, func(j *job.Job) error {
		if j.Authorized {
			return domain.ValidationError(fmt.Sprintf("job %s is already paid", j.ID), nil)
		}
		complete, err := j.IsComplete(ctx, c.marketplace)
		if err != nil {
			return err
		}
		if !complete {
			return domain.IncompleteError(
				fmt.Sprintf("job %s: %d of %d tasks complete", j.ID, j.CompletedCount(), len(j.Tasks)), nil)
		}

		if j.CallerToken == "" {
			token, err := c.gateway.InstallCallerInstruction(ctx)
			if err != nil {
				return asGatewayFailure("install caller instruction", err)
			}
			j.CallerToken = token
		}
		if j.RecipientToken == "" {
			token, err := c.gateway.InstallRecipientInstruction(ctx)
			if err != nil {
				return asGatewayFailure("install recipient instruction", err)
			}
			j.RecipientToken = token
		}
		j.Declined, j.DeclineStatus = false, ""
		j.Touch()

		u, err := c.gateway.BuildRedirectURL(c.redirectParams(j))
		if err != nil {
			return asGatewayFailure("build redirect url", err)
		}
		redirect = u
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("Payment initiation failed")
		return "", err
	}

	log.Info().Msg("Payment initiated")
	return redirect, nil
}

func (c *Coordinator) redirectParams(j *job.Job) url.Values {
	v := url.Values{}
	v.Set("callerKey", c.cfg.CallerKey)
	v.Set("pipelineName", PipelineSingleUse)
	v.Set("returnURL", c.returnURL(j.ID))
	v.Set("callerReference", j.ID)
	v.Set("paymentReason", "RecaptureDocs conversion - "+strconv.Itoa(len(j.Pages))+" pages")
	v.Set("transactionAmount", FormatAmount(j.Cost()))
	v.Set("recipientToken", j.RecipientToken)
	return v
}

func (c *Coordinator) returnURL(jobID string) string {
	if c.cfg.ReturnURL != nil {
		return c.cfg.ReturnURL(jobID)
	}
	return "/complete_payment/" + jobID
}

// CompletePayment handles the gateway callback for a job.
//
// A non-success status marks the job declined without contacting the
// gateway. Otherwise the declared signature scheme must match the supported
// one and the gateway must confirm the signature before the cost is captured
// and the job authorized. A job is captured at most once.
func (c *Coordinator) CompletePayment(ctx context.Context, jobID string, cb Callback) (Outcome, error) {
	log := c.logger.WithJob(jobID).WithOperation("complete_payment")

	current, err := c.store.Get(jobID)
	if err != nil {
		return "", err
	}
	if current.Authorized {
		log.Info().Msg("Payment already authorized")
		return OutcomeAlreadyAuthorized, nil
	}

	if cb.Status != StatusSuccess {
		_, err := c.store.Mutate(ctx, jobID, func(j *job.Job) error {
			if j.Authorized {
				return nil
			}
			j.Declined = true
			j.DeclineStatus = cb.Status
			j.Touch()
			return nil
		})
		if err != nil {
			return "", err
		}
		log.Info().Str("status", cb.Status).Msg("Payment declined")
		return OutcomeDeclined, nil
	}

	if cb.SignatureVersion != c.cfg.SignatureVersion || cb.SignatureMethod != c.cfg.SignatureMethod {
		log.Warn().
			Str("signature_version", cb.SignatureVersion).
			Str("signature_method", cb.SignatureMethod).
			Msg("Unsupported callback signature scheme")
		return "", domain.SignatureMismatch(fmt.Sprintf(
			"unsupported signature scheme version=%q method=%q", cb.SignatureVersion, cb.SignatureMethod), nil)
	}

	ok, err := c.gateway.VerifySignature(ctx, cb.EndpointURL, cb.QueryString)
	if err != nil {
		return "", asGatewayFailure("verify signature", err)
	}
	if !ok {
		log.Warn().Msg("Gateway rejected callback signature")
		return "", domain.SignatureMismatch("callback signature rejected by gateway", nil)
	}
	if cb.TokenID == "" {
		return "", domain.ValidationError("callback carries no sender token", nil)
	}

	outcome := OutcomeAuthorized
	updated, err := c.store.Mutate(ctx, jobID, func(j *job.Job) error {
		if j.Authorized {
			outcome = OutcomeAlreadyAuthorized
			return errAlreadyAuthorized
		}
		if j.CallerToken == "" || j.RecipientToken == "" {
			return domain.ValidationError(fmt.Sprintf("job %s has no installed payment instructions", j.ID), nil)
		}

		j.SenderToken = cb.TokenID
		res, err := c.gateway.Capture(ctx, domain.CaptureRequest{
			AmountCents:    j.Cost(),
			SenderToken:    j.SenderToken,
			RecipientToken: j.RecipientToken,
			CallerToken:    j.CallerToken,
			Reference:      j.ID,
		})
		if err != nil {
			return asGatewayFailure("capture", err)
		}
		if res.Status != "Success" && res.Status != "Pending" {
			return domain.PaymentGatewayFailure(fmt.Sprintf("capture ended in status %s", res.Status), nil)
		}

		now := time.Now().UTC()
		j.TransactionID = res.TransactionID
		j.Authorized = true
		j.AuthorizedAt = &now
		j.Declined, j.DeclineStatus = false, ""
		j.Touch()
		return nil
	})
	if errors.Is(err, errAlreadyAuthorized) {
		return OutcomeAlreadyAuthorized, nil
	}
	if err != nil {
		log.Error().Err(err).Msg("Payment capture failed")
		return "", err
	}

	log.Info().
		Str("transaction_id", updated.TransactionID).
		Int64("amount_cents", updated.Cost()).
		Msg("Payment authorized")
	return outcome, nil
}

var errAlreadyAuthorized = errors.New("already authorized")

func asGatewayFailure(op string, err error) error {
	if domain.TypeOf(err) != "" {
		return err
	}
	return domain.PaymentGatewayFailure(op, err)
}
