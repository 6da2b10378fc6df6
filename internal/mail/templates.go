package mail

import (
	"fmt"
	"time"
)

func VerificationMessage(to, secret string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Verify your Smart Campus email",
		Body: fmt.Sprintf(
			"Welcome to Smart Campus.\n\nYour email verification token is: %s\n\nIt expires in %s. "+
				"If you did not create an account you can ignore this message.\n",
			secret, humanDuration(ttl)),
	}
}

func PasswordResetMessage(to, secret string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Password Reset",
		Body: fmt.Sprintf(
			"You requested a password reset. Here is your token: %s\n\nIt will expire in %s. "+
				"If you did not request a reset, no action is needed.\n",
			secret, humanDuration(ttl)),
	}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
