package enums

// WebhookOutcome records what processing a claimed webhook event did.
type WebhookOutcome string

const (
	WebhookOutcomeApplied WebhookOutcome = "applied"
	WebhookOutcomeNoop    WebhookOutcome = "noop"
	WebhookOutcomeIgnored WebhookOutcome = "ignored"
)

func (o WebhookOutcome) String() string {
	return string(o)
}
