// Package ledger owns the per-request connection lifecycle against the
// Fabric network. One session per request, never pooled, always released.
package ledger

import "log/slog"

// Contract is the handle a session yields for invoking chaincode functions.
// *gateway.Contract from fabric-sdk-go satisfies it; tests substitute fakes.
type Contract interface {
	SubmitTransaction(name string, args ...string) ([]byte, error)
	EvaluateTransaction(name string, args ...string) ([]byte, error)
}

// Session is one live gateway connection. Close is idempotent and never
// fails upward.
type Session interface {
	Contract() Contract
	Close()
}

// Connector acquires a session: profile, wallet, identity, gateway, channel,
// contract. A failed acquisition must release anything partially opened
// before returning.
type Connector interface {
	Connect() (Session, error)
}

// Manager runs work inside a scoped session.
type Manager struct {
	connector Connector
	log       *slog.Logger
}

func NewManager(connector Connector, log *slog.Logger) *Manager {
	return &Manager{connector: connector, log: log}
}

// WithSession acquires a session, runs fn, and releases the session on every
// exit path, including a panic inside fn.
func (m *Manager) WithSession(fn func(Contract) error) error {
	sess, err := m.connector.Connect()
	if err != nil {
		m.log.Error("ledger connection failed", "error", err)
		return err
	}
	defer sess.Close()
	return fn(sess.Contract())
}
