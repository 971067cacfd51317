package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/contenthub/internal/telemetry/metrics"
	"github.com/2beens/contenthub/internal/telemetry/tracing"
	"github.com/2beens/contenthub/internal/verification"

	"github.com/wneessen/go-mail"
)

const DefaultSendTimeout = 15 * time.Second

type SMTPParams struct {
	Host        string
	Port        int
	Username    string
	Password    string
	From        string
	SendTimeout time.Duration
	// CodeTTL is only quoted in the mail body
	CodeTTL time.Duration
}

func (p SMTPParams) validate() error {
	var errs []error
	if p.Host == "" {
		errs = append(errs, errors.New("smtp host not set"))
	}
	if p.Port <= 0 {
		errs = append(errs, fmt.Errorf("invalid smtp port: %d", p.Port))
	}
	if p.From == "" {
		errs = append(errs, errors.New("mail sender (from) not set"))
	}
	if p.Username == "" || p.Password == "" {
		errs = append(errs, errors.New("smtp credentials not set"))
	}
	return errors.Join(errs...)
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type SMTPDispatcher struct {
	client         sender
	from           string
	sendTimeout    time.Duration
	codeTTL        time.Duration
	metricsManager *metrics.Manager
}

func NewSMTPDispatcher(params SMTPParams, metricsManager *metrics.Manager) (*SMTPDispatcher, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("smtp dispatcher config: %w", err)
	}

	client, err := mail.NewClient(
		params.Host,
		mail.WithPort(params.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithUsername(params.Username),
		mail.WithPassword(params.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return newSMTPDispatcher(client, params.From, params.SendTimeout, params.CodeTTL, metricsManager), nil
}

func newSMTPDispatcher(
	client sender,
	from string,
	sendTimeout time.Duration,
	codeTTL time.Duration,
	metricsManager *metrics.Manager,
) *SMTPDispatcher {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if codeTTL <= 0 {
		codeTTL = verification.DefaultTTL
	}
	return &SMTPDispatcher{
		client:         client,
		from:           from,
		sendTimeout:    sendTimeout,
		codeTTL:        codeTTL,
		metricsManager: metricsManager,
	}
}

func (d *SMTPDispatcher) SendVerificationCode(ctx context.Context, email, code string) (err error) {
	ctx, span := tracing.Start(ctx, "mailer.smtp.sendVerificationCode")
	defer func() { tracing.EndSpan(span, err) }()

	msg, err := d.newVerificationMsg(email, code)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	start := time.Now()
	err = d.client.DialAndSendWithContext(ctx, msg)
	d.metricsManager.HistCodeDispatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}

	d.metricsManager.CounterCodesDispatched.Inc()
	return nil
}

func (d *SMTPDispatcher) newVerificationMsg(email, code string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(d.from); err != nil {
		return nil, fmt.Errorf("set mail sender: %w", err)
	}
	if err := msg.To(email); err != nil {
		return nil, fmt.Errorf("set mail recipient: %w", err)
	}
	msg.Subject(verificationSubject)
	msg.SetBodyString(mail.TypeTextPlain, verificationBody(code, d.codeTTL))
	return msg, nil
}
