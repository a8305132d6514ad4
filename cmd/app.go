package cmd

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/fakeyudi/tgdeck/internal/config"
	"github.com/fakeyudi/tgdeck/internal/credentials"
	"github.com/fakeyudi/tgdeck/internal/dashboard"
	"github.com/fakeyudi/tgdeck/internal/dataset"
	"github.com/fakeyudi/tgdeck/internal/gateway"
	"github.com/fakeyudi/tgdeck/internal/registry"
	"github.com/fakeyudi/tgdeck/internal/session"
	"github.com/fakeyudi/tgdeck/internal/storage"
	"github.com/fakeyudi/tgdeck/internal/toggle"
)

// App is the component graph one command runs against.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	kv        storage.Store
	close     func() error
	transport *gateway.Transport
	session   *session.Store
	api       *gateway.Gateway
}

func newApp(c config.Config, logger *zap.Logger) (*App, error) {
	timeout, err := c.Timeout()
	if err != nil {
		return nil, err
	}
	kv, closeKV, err := openStore(c)
	if err != nil {
		return nil, err
	}

	tr := gateway.NewTransport(c.BackendURL, &http.Client{Timeout: timeout}, logger)
	sess := session.New(kv, tr, logger)
	unsubscribe := toggle.ClearOnLogout(sess, kv, logger)
	closeAll := func() error {
		unsubscribe()
		return closeKV()
	}
	return &App{
		cfg:       c,
		logger:    logger,
		kv:        kv,
		close:     closeAll,
		transport: tr,
		session:   sess,
		api:       gateway.New(tr, sess, logger),
	}, nil
}

// openStore opens the configured storage backend under the data dir.
func openStore(c config.Config) (storage.Store, func() error, error) {
	dir := c.DataDir
	if dir == "" {
		d, err := storage.DataDir()
		if err != nil {
			return nil, nil, err
		}
		dir = d
	}
	switch c.StorageBackend {
	case "sqlite":
		s, err := storage.OpenSQLite(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := storage.NewFileStore(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening file store: %w", err)
		}
		return s, func() error { return nil }, nil
	}
}

// Close releases storage and flushes the logger.
func (a *App) Close() error {
	_ = a.logger.Sync()
	return a.close()
}

func (a *App) Registry() *registry.Registry {
	return registry.New(a.api, a.logger)
}

func (a *App) Credentials() *credentials.Client {
	return credentials.New(a.api, a.logger)
}

func (a *App) Toggle() *toggle.Toggle {
	return toggle.New(a.api, a.kv, a.logger)
}

func (a *App) Dataset(channelID string) *dataset.View {
	return dataset.NewView(a.api, channelID, a.cfg.PageSize, a.logger)
}

func (a *App) Dashboard() *dashboard.Loader {
	return dashboard.New(a.api, a.logger)
}
