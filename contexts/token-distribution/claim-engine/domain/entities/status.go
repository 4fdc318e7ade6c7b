package entities

type RecipientStatus string

const (
	RecipientStatusUnregistered RecipientStatus = "unregistered"
	RecipientStatusEntitled     RecipientStatus = "entitled"
	RecipientStatusClaimed      RecipientStatus = "claimed"
)

// ResolveRecipientStatus maps stored facts onto the recipient state machine.
// Claimed wins over any later entitlement change.
func ResolveRecipientStatus(entitlement Entitlement, found bool, claimed bool) RecipientStatus {
	switch {
	case claimed:
		return RecipientStatusClaimed
	case found && entitlement.IsParticipant():
		return RecipientStatusEntitled
	default:
		return RecipientStatusUnregistered
	}
}
