package broker

import "github.com/embermq/broker/network"

// connSender adapts *network.Connection to session.Sender so the
// session package never needs to import network.
type connSender struct {
	conn *network.Connection
}

func (s connSender) Send(raw []byte) error {
	_, err := s.conn.Write(raw)
	return err
}

func (s connSender) Close() error {
	return s.conn.Close()
}
