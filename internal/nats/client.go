package nats

import (
	"log/slog"

	"github.com/nats-io/nats.go"

	"sudooom.im.client/internal/config"
)

// Connect 连接 NATS
func Connect(cfg config.NATSConfig) (*nats.Conn, error) {
	logger := slog.Default()

	opts := []nats.Option{
		nats.Name("im-client"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	return nats.Connect(cfg.URL, opts...)
}
