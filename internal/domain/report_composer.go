package domain

import "context"

// ReportComposer narrates a ranked match list. The prose itself is
// model-generated and non-deterministic; the contract is structural: a
// non-empty string free of generation-protocol markup, naming the top
// match and at least the next two runner-ups. Implementations retry
// like TraitExtractor and wrap terminal failures with
// ErrReportGeneration. No partial report is returned on failure.
type ReportComposer interface {
	Compose(ctx context.Context, userText string, traits []string, matches []Match) (string, error)
}
