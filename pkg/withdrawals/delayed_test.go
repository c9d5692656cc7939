package withdrawals

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestDelayedClaimsProcessor_OneClaimPerPod(t *testing.T) {
	// Each pod gets exactly one claim bounded by its claimable count; a pod
	// with nothing claimable still gets a zero-count claim.
	podA := common.HexToAddress("0x21")
	podB := common.HexToAddress("0x22")
	ownerA := common.HexToAddress("0xc1")
	ownerB := common.HexToAddress("0xc2")
	routerAddr := common.HexToAddress("0xee")

	pods := &fakePods{routers: map[common.Address]common.Address{
		podA: routerAddr,
		podB: routerAddr,
	}}
	router := &fakeRouter{claimable: map[common.Address][]*DelayedWithdrawal{
		podA: {
			{Amount: big.NewInt(1), BlockCreated: 10},
			{Amount: big.NewInt(2), BlockCreated: 11},
		},
	}}
	encoder := &fakeEncoder{}

	p := NewDelayedClaimsProcessor(
		PodOwnerMap{podA: ownerA, podB: ownerB}, 100,
		pods, router, encoder, logrus.New())

	calls, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 2)
	require.Equal(t, ownerA, calls[0].Target)
	require.Equal(t, ownerB, calls[1].Target)
	require.True(t, calls[0].Payable)

	claims := encoderClaims(encoder)
	require.Equal(t, uint64(2), claims[ownerA])
	require.Equal(t, uint64(0), claims[ownerB])
}

func TestDelayedClaimsProcessor_NoPods(t *testing.T) {
	p := NewDelayedClaimsProcessor(
		PodOwnerMap{}, 100, &fakePods{}, &fakeRouter{}, &fakeEncoder{}, logrus.New())

	calls, err := p.Process(context.Background())
	require.NoError(t, err)
	require.Empty(t, calls)
}

func encoderClaims(encoder *fakeEncoder) map[common.Address]uint64 {
	claims := make(map[common.Address]uint64)
	for _, call := range encoder.byKind("claim") {
		claims[call.owner] = call.maxNumber
	}

	return claims
}
