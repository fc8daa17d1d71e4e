package fusion

// Decision is the state a reading ends in. A scan starts in Scanning, moves to
// CandidateDetected when text shows up and ends in one of the three terminal
// outcomes. The caller returns to Scanning once it disposes of the result.
type Decision string

const (
	DecisionScanning            Decision = "scanning"
	DecisionCandidateDetected   Decision = "candidate_detected"
	DecisionAutoAccepted        Decision = "auto_accepted"
	DecisionPendingConfirmation Decision = "pending_confirmation"
	DecisionManualEntryRequired Decision = "manual_entry_required"
)

// Terminal reports whether d is one of the three outcomes
func (d Decision) Terminal() bool {
	switch d {
	case DecisionAutoAccepted, DecisionPendingConfirmation, DecisionManualEntryRequired:
		return true
	case DecisionScanning, DecisionCandidateDetected:
		return false
	default:
		return false
	}
}

// Decide maps a composite confidence onto an outcome. composite >= manual
// auto-accepts unless verification is forced, base <= composite < manual asks
// for confirmation and anything below base or without a serial format match
// needs manual entry.
func Decide(composite, base, manual float64, patternMatched, forced bool) Decision {
	switch {
	case !patternMatched:
		return DecisionManualEntryRequired
	case composite < base:
		return DecisionManualEntryRequired
	case composite >= manual && !forced:
		return DecisionAutoAccepted
	default:
		return DecisionPendingConfirmation
	}
}
