package reservation

type Outcome string

const (
	// OutcomeReserved: this call inserted the hold.
	OutcomeReserved Outcome = "reserved"
	// OutcomeAlreadyHeld: the caller already held it, nothing changed.
	OutcomeAlreadyHeld Outcome = "already_held"
	// OutcomeTaken: someone else holds it; pick another number.
	OutcomeTaken Outcome = "taken"
	// OutcomeInvalid: the number is not part of the raffle.
	OutcomeInvalid Outcome = "invalid"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindPartial Kind = "partial"
	KindFailure Kind = "failure"
)

type NumberResult struct {
	Number  string  `json:"number"`
	Outcome Outcome `json:"outcome"`
}

// ReserveResult reports each requested number separately. Losing a race on
// one number never undoes the others.
type ReserveResult struct {
	RaffleID string         `json:"raffle_id"`
	HolderID string         `json:"holder_id"`
	Numbers  []NumberResult `json:"numbers"`
}

func (r *ReserveResult) add(number string, outcome Outcome) {
	r.Numbers = append(r.Numbers, NumberResult{Number: number, Outcome: outcome})
}

// Kind is success when the caller holds every requested number afterwards,
// failure when it holds none of them and partial otherwise.
func (r ReserveResult) Kind() Kind {
	ok := len(r.Owned())
	switch {
	case len(r.Numbers) > 0 && ok == len(r.Numbers):
		return KindSuccess
	case ok == 0:
		return KindFailure
	default:
		return KindPartial
	}
}

// Owned lists numbers the caller holds after the call.
func (r ReserveResult) Owned() []string {
	return r.with(OutcomeReserved, OutcomeAlreadyHeld)
}

// Reserved lists numbers newly held by this call.
func (r ReserveResult) Reserved() []string {
	return r.with(OutcomeReserved)
}

// Taken lists numbers lost to another holder.
func (r ReserveResult) Taken() []string {
	return r.with(OutcomeTaken)
}

func (r ReserveResult) Invalid() []string {
	return r.with(OutcomeInvalid)
}

func (r ReserveResult) with(outcomes ...Outcome) []string {
	out := make([]string, 0)
	for _, n := range r.Numbers {
		for _, o := range outcomes {
			if n.Outcome == o {
				out = append(out, n.Number)
				break
			}
		}
	}
	return out
}
