package mailer

import (
	"context"

	"github.com/2beens/contenthub/internal/telemetry/metrics"

	log "github.com/sirupsen/logrus"
)

// LogDispatcher only logs the code. Used in development, where no SMTP server is around.
type LogDispatcher struct {
	metricsManager *metrics.Manager
}

func NewLogDispatcher(metricsManager *metrics.Manager) *LogDispatcher {
	return &LogDispatcher{
		metricsManager: metricsManager,
	}
}

func (d *LogDispatcher) SendVerificationCode(_ context.Context, email, code string) error {
	log.Warnf("=> [dev mailer] verification code for %s: %s", email, code)
	d.metricsManager.CounterCodesDispatched.Inc()
	return nil
}
