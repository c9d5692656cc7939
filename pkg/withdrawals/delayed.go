package withdrawals

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DelayedClaimsProcessor turns claimable delayed withdrawals into claim calls
// against each pod's owner contract.
type DelayedClaimsProcessor struct {
	podOwners   PodOwnerMap
	blockNumber uint64

	pods    PodContract
	router  DelayedRouter
	encoder OwnerEncoder

	log logrus.FieldLogger
}

// NewDelayedClaimsProcessor creates a delayed-withdrawal claim processor.
func NewDelayedClaimsProcessor(
	podOwners PodOwnerMap,
	blockNumber uint64,
	pods PodContract,
	router DelayedRouter,
	encoder OwnerEncoder,
	log logrus.FieldLogger,
) *DelayedClaimsProcessor {
	return &DelayedClaimsProcessor{
		podOwners:   podOwners,
		blockNumber: blockNumber,
		pods:        pods,
		router:      router,
		encoder:     encoder,
		log:         log.WithField("component", "delayed-claims-processor"),
	}
}

// Process emits one claim call per pod, bounded by the number of currently
// claimable delayed withdrawals. A claim is emitted even when nothing is
// claimable; callers may filter zero-count claims.
func (p *DelayedClaimsProcessor) Process(ctx context.Context) ([]*Call, error) {
	calls := make([]*Call, 0, len(p.podOwners))

	for _, pod := range p.podOwners.SortedPods() {
		router, err := p.pods.DelayedWithdrawalRouter(ctx, pod, p.blockNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve withdrawal router for pod %s: %w", pod.Hex(), err)
		}

		claimable, err := p.router.ClaimableDelayedWithdrawals(ctx, router, pod, p.blockNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch claimable withdrawals for pod %s: %w", pod.Hex(), err)
		}

		p.log.WithFields(logrus.Fields{
			"pod":       pod.Hex(),
			"claimable": len(claimable),
		}).Debug("Claiming delayed withdrawals")

		call, err := p.encoder.ClaimDelayedWithdrawalsCall(p.podOwners[pod], uint64(len(claimable)))
		if err != nil {
			return nil, fmt.Errorf("failed to encode claim call: %w", err)
		}

		calls = append(calls, call)
	}

	return calls, nil
}
