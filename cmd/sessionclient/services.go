package main

import (
	"fmt"

	"github.com/oxen-io/session-network-core/pkg/config"
	"github.com/oxen-io/session-network-core/pkg/difficulty"
	"github.com/oxen-io/session-network-core/pkg/executor"
	"github.com/oxen-io/session-network-core/pkg/failure"
	"github.com/oxen-io/session-network-core/pkg/httpclient"
	"github.com/oxen-io/session-network-core/pkg/opengroup"
	"github.com/oxen-io/session-network-core/pkg/receivepath"
	"github.com/oxen-io/session-network-core/pkg/sendpath"
	"github.com/oxen-io/session-network-core/pkg/storage"
	"github.com/oxen-io/session-network-core/pkg/storage/boltstore"
	"github.com/oxen-io/session-network-core/pkg/storagerpc"
	"github.com/oxen-io/session-network-core/pkg/swarm"
	"github.com/oxen-io/session-network-core/pkg/types"
)

// services bundles every process-wide component a subcommand needs,
// wired once per invocation from config.Config.
type services struct {
	store     storage.Store
	discovery *swarm.Discovery
	sender    *sendpath.Sender
	receiver  *receivepath.Receiver
	openGroup *opengroup.Client
}

func buildServices(cfg config.Config) (*services, error) {
	store, err := boltstore.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open data directory %s: %w", cfg.DataDir, err)
	}

	http := httpclient.New()
	pool := swarm.NewRandomPool(http, cfg.Seeds)
	failures := failure.New()
	diff := difficulty.New(types.InitialDifficulty)
	rpc := storagerpc.New(http, failures, diff)
	discovery := swarm.New(pool, rpc, store)
	pools := executor.NewPools()

	sender := sendpath.New(http, discovery, diff, sendpath.NewPeerTable(), pools)
	receiver := receivepath.New(discovery, store, store)

	signingKey, err := cfg.SigningKey()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load identity: %w", err)
	}
	challengeKey, err := cfg.ChallengeKey()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load identity: %w", err)
	}
	og := opengroup.New(opengroup.Config{
		HTTP:                http,
		Tokens:              store,
		Cursors:             store,
		Misc:                store,
		UserPublicKeyHex:    cfg.Identity.PublicKeyHex,
		ChallengePrivateKey: challengeKey,
		SigningKey:          signingKey,
	})

	return &services{
		store:     store,
		discovery: discovery,
		sender:    sender,
		receiver:  receiver,
		openGroup: og,
	}, nil
}

func (s *services) Close() {
	_ = s.store.Close()
}
