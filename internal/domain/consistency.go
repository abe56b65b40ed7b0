package domain

// OptionDrift is an option whose cached count disagrees with the ledger
type OptionDrift struct {
	OptionID string `json:"option_id"`
	Cached   int64  `json:"cached"`
	Counted  int64  `json:"counted"`
}

// ConsistencyReport compares a poll's cached counters with a direct ledger count
type ConsistencyReport struct {
	PollID         string        `json:"poll_id"`
	TotalVotes     int64         `json:"total_votes"`
	OptionSum      int64         `json:"option_sum"`
	LedgerCount    int64         `json:"ledger_count"`
	DriftedOptions []OptionDrift `json:"drifted_options,omitempty"`
}

// Consistent reports whether total_votes == sum(vote_count) == count(votes)
// and every option matches its own ledger count.
func (r *ConsistencyReport) Consistent() bool {
	return r.TotalVotes == r.OptionSum && r.OptionSum == r.LedgerCount && len(r.DriftedOptions) == 0
}

// Fault returns a ConsistencyFault when the report shows drift
func (r *ConsistencyReport) Fault() error {
	if r.Consistent() {
		return nil
	}
	return &ConsistencyFault{Report: r}
}
