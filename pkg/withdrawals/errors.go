package withdrawals

import "errors"

var (
	// ErrNoWithdrawalHistory is returned when no pod in the set has a
	// recorded withdrawal-redeemed event and no checkpoint exists, so no
	// scan lower bound can be derived.
	ErrNoWithdrawalHistory = errors.New("no withdrawal history for any pod")

	// ErrUnknownPod is returned when a withdrawal references a pod that is
	// not present in the owner map.
	ErrUnknownPod = errors.New("withdrawal references unknown pod")
)
