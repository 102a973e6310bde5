package main

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nonceService answers eth_getTransactionCount with a fixed pending count.
type nonceService struct {
	pending uint64
	block   string
}

func (s *nonceService) GetTransactionCount(_ common.Address, block string) (hexutil.Uint64, error) {
	s.block = block
	return hexutil.Uint64(s.pending), nil
}

func TestStartingNonce(t *testing.T) {
	svc := &nonceService{pending: 17}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", svc))
	client := ethclient.NewClient(rpc.DialInProc(server))
	t.Cleanup(func() {
		client.Close()
		server.Stop()
	})

	addr := common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	ctx := context.Background()

	got, err := startingNonce(ctx, client, addr, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), got)
	assert.Equal(t, "pending", svc.block)

	explicit := uint64(0)
	got, err = startingNonce(ctx, client, addr, &explicit)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), got, "an explicit nonce wins, zero included")
}
