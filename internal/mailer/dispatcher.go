package mailer

import (
	"context"
	"fmt"
	"time"
)

// Dispatcher delivers verification codes to admins.
type Dispatcher interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

const verificationSubject = "Your ContentHub verification code"

func verificationBody(code string, codeTTL time.Duration) string {
	return fmt.Sprintf(
		"Your ContentHub admin verification code is: %s\n\n"+
			"The code expires in %s and can be used only once.\n"+
			"If you did not try to log in, you can ignore this email.\n",
		code, humanDuration(codeTTL),
	)
}

// humanDuration renders whole minutes as "10 minutes", anything else as time.Duration does.
func humanDuration(d time.Duration) string {
	if d <= 0 || d%time.Minute != 0 {
		return d.String()
	}
	minutes := int(d / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
