package decision

import (
	"biogate/internal/config"
	"biogate/internal/model"
)

// Fraud-flag tags attached to transaction decisions.
const (
	TagHighRiskBehavior = "high_risk_behavior"
	TagElevatedRisk     = "elevated_risk"
	TagLargeAmount      = "large_amount"
)

// Evaluate maps a session risk score and transfer amount to a transaction
// disposition. The mapping is monotonic in risk: a higher score never yields
// a less severe status. A large amount worsens an approval to a flag and
// always tags the transaction, but never causes a block on its own.
func Evaluate(riskScore, amount float64, cfg config.DecisionConfig) (model.TransactionStatus, []string) {
	status := model.TxApproved
	flags := make([]string, 0, 2)

	switch {
	case riskScore > cfg.BlockThreshold:
		status = model.TxBlocked
		flags = append(flags, TagHighRiskBehavior)
	case riskScore > cfg.FlagThreshold:
		status = model.TxFlagged
		flags = append(flags, TagElevatedRisk)
	}

	if amount > cfg.LargeAmount {
		flags = append(flags, TagLargeAmount)
		if status == model.TxApproved {
			status = model.TxFlagged
		}
	}

	return status, flags
}

// FallbackRisk is the score used when no session record exists for the
// submitted identifier: cautious middle ground, neither auto-approve nor
// auto-block.
func FallbackRisk(cfg config.DecisionConfig) float64 {
	return cfg.DefaultRisk
}
