package server

import (
	"context"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/driftmail/driftmail/pkg/extension/luahost"
	"github.com/driftmail/driftmail/pkg/message"
	"github.com/driftmail/driftmail/pkg/msghub"
	"github.com/driftmail/driftmail/pkg/policy"
	"github.com/driftmail/driftmail/pkg/rest"
	"github.com/driftmail/driftmail/pkg/server/smtp"
	"github.com/driftmail/driftmail/pkg/server/web"
	"github.com/driftmail/driftmail/pkg/storage"
	"github.com/driftmail/driftmail/pkg/storage/mem"
	"github.com/driftmail/driftmail/pkg/stringutil"
)

// Services holds the configured and started services.
type Services struct {
	ExtHost          *extension.Host
	MsgHub           *msghub.Hub
	RetentionScanner *storage.RetentionScanner
	SMTPServer       *smtp.Server
}

// Prod wires up the production DriftMail environment.
func Prod(rootCtx context.Context, shutdownChan chan bool, conf *config.Root) (*Services, error) {
	// Extension event host; Lua scripting attaches to it when configured.
	extHost := extension.NewHost()
	if _, err := luahost.New(conf.Ext, extHost); err != nil {
		return nil, err
	}

	// Configure storage.
	store := mem.New(conf.Storage, extHost)

	msgHub := msghub.New(conf.Web.MonitorHistory, extHost)
	go msgHub.Start(rootCtx)
	addrPolicy := &policy.Addressing{Config: conf}
	mmanager := &message.StoreManager{AddrPolicy: addrPolicy, Store: store, ExtHost: extHost}

	// Start retention scanner.
	retentionScanner := storage.NewRetentionScanner(conf.Storage, store, shutdownChan)
	retentionScanner.Start()

	// Configure routes and start HTTP server.
	prefix := stringutil.MakePathPrefixer(conf.Web.BasePath)
	web.Initialize(conf, shutdownChan, mmanager, msgHub)
	rest.SetupRoutes(web.Router.PathPrefix(prefix("/api/")).Subrouter())
	go web.Start(rootCtx)

	// Start SMTP server.
	smtpServer := smtp.NewServer(conf.SMTP, shutdownChan, mmanager, addrPolicy, extHost)
	go smtpServer.Start(rootCtx)

	return &Services{
		ExtHost:          extHost,
		MsgHub:           msgHub,
		RetentionScanner: retentionScanner,
		SMTPServer:       smtpServer,
	}, nil
}
