package main

import (
	"net/http"

	"github.com/aanthord/mtls-relay/internal/business"
	"github.com/aanthord/mtls-relay/internal/handlers"
	"github.com/aanthord/mtls-relay/internal/ids"
	"github.com/aanthord/mtls-relay/internal/models"
	"github.com/aanthord/mtls-relay/internal/relay"
	"github.com/aanthord/mtls-relay/internal/storage"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func runIngress(p *process) error {
	client, err := p.downstream()
	if err != nil {
		return err
	}
	messenger := relay.NewMessengerClient(client)
	registerIngressRoutes(p.router, messenger, p.retrier(), p.logger)
	return p.serve()
}

func registerIngressRoutes(router *mux.Router, messenger handlers.MessageRelay, retrier *handlers.Retrier, logger *zap.SugaredLogger) {
	router.HandleFunc("/send", handlers.NewSendHandler(messenger, retrier, logger).Handle).Methods(http.MethodPost)
	router.HandleFunc("/messages", handlers.NewMessagesHandler(messenger, logger).Handle).Methods(http.MethodGet)
}

func runMessenger(p *process) error {
	store := storage.NewLog[models.Message](ids.NewUUIDGenerator())
	relay.NewMessengerService(store, p.logger).Register(p.newRPCServer())
	return p.serve()
}

func runGateway(p *process) error {
	client, err := p.downstream()
	if err != nil {
		return err
	}
	registerGatewayRoutes(p.router, relay.NewPipelineClient(client), p.retrier(), p.logger)
	return p.serve()
}

func registerGatewayRoutes(router *mux.Router, pipeline handlers.PipelineRelay, retrier *handlers.Retrier, logger *zap.SugaredLogger) {
	router.HandleFunc("/process", handlers.NewProcessHandler(pipeline, ids.NewUUIDGenerator(), retrier, logger).Handle).Methods(http.MethodPost)
}

func runForwarder(p *process) error {
	srv := p.newRPCServer()
	client, err := p.downstream()
	if err != nil {
		return err
	}
	processor := business.NewMessageProcessor(relay.NewDisplayClient(client), ids.NewUUIDGenerator(), p.logger)
	relay.NewForwarderService(processor, p.logger).Register(srv)
	return p.serve()
}

// The store is built once here and handed by reference to both the RPC
// service (sole writer) and the HTTP handlers (snapshot readers).
func runDisplay(p *process) error {
	store := storage.NewLog[models.StoredRecord](ids.NewULIDGenerator("disp-"))
	relay.NewDisplayService(store, p.logger).Register(p.newRPCServer())
	registerDisplayRoutes(p.router, store, p.logger)
	return p.serve()
}

func registerDisplayRoutes(router *mux.Router, store handlers.RecordStore, logger *zap.SugaredLogger) {
	data := handlers.NewDataHandler(store, logger)
	router.HandleFunc("/data", data.Handle).Methods(http.MethodGet)
	router.HandleFunc("/api/data", data.Handle).Methods(http.MethodGet)
	router.HandleFunc("/search", handlers.NewSearchHandler(store, logger).Handle).Methods(http.MethodGet)
}
