package ledger

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"

	"medigateway/core/apierror"
)

// FabricConnector opens gateway sessions against a Fabric peer using a
// static connection profile and a file-system wallet. The profile path,
// wallet path, identity label, channel and contract id are deployment
// constants injected from config.
type FabricConnector struct {
	CCPPath       string
	WalletPath    string
	IdentityLabel string
	Channel       string
	ContractID    string
	Timeout       time.Duration
	Log           *slog.Logger
}

// Connect performs the full acquisition sequence. Every step that fails
// after the gateway opened closes it before propagating.
func (f *FabricConnector) Connect() (Session, error) {
	wallet, err := gateway.NewFileSystemWallet(f.WalletPath)
	if err != nil {
		return nil, apierror.Tag(apierror.SourceConnectivity,
			fmt.Errorf("open wallet %s: %w", f.WalletPath, err))
	}
	if !wallet.Exists(f.IdentityLabel) {
		return nil, apierror.Tag(apierror.SourceIdentity,
			fmt.Errorf("identity %q does not exist in wallet; run the enrollment script first", f.IdentityLabel))
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(config.FromFile(filepath.Clean(f.CCPPath))),
		gateway.WithIdentity(wallet, f.IdentityLabel),
		gateway.WithTimeout(f.Timeout),
	)
	if err != nil {
		return nil, apierror.Tag(apierror.SourceConnectivity,
			fmt.Errorf("Failed to connect to blockchain network: %w", err))
	}

	network, err := gw.GetNetwork(f.Channel)
	if err != nil {
		gw.Close()
		return nil, apierror.Tag(apierror.SourceConnectivity,
			fmt.Errorf("get network %q: %w", f.Channel, err))
	}

	f.Log.Debug("ledger session opened", "channel", f.Channel, "contract", f.ContractID)
	return &fabricSession{
		gw:       gw,
		contract: network.GetContract(f.ContractID),
		log:      f.Log,
	}, nil
}

type fabricSession struct {
	gw       *gateway.Gateway
	contract *gateway.Contract
	log      *slog.Logger
	once     sync.Once
}

func (s *fabricSession) Contract() Contract { return s.contract }

func (s *fabricSession) Close() {
	s.once.Do(func() {
		s.gw.Close()
		s.log.Debug("ledger session closed")
	})
}
