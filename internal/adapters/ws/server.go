package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"auction-ledger-service/internal/config"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Server struct {
	handler    *WsHandler
	httpServer *http.Server
	config     *config.Config
	logger     zerolog.Logger
}

type ServerParams struct {
	Config            *config.Config
	AuctionService    inbound.AuctionService
	BidService        inbound.BidService
	SettlementService inbound.SettlementService
	Broadcaster       outbound.Broadcaster
	Logger            zerolog.Logger
}

func NewServer(params ServerParams) (*Server, error) {
	defaultStartingPrice, err := params.Config.Auction.StartingPrice()
	if err != nil {
		return nil, err
	}

	handler := NewHandler(WsHandlerParams{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  params.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: params.Config.WebSocket.WriteBufferSize,
		},
		AuctionService:       params.AuctionService,
		BidService:           params.BidService,
		SettlementService:    params.SettlementService,
		Broadcaster:          params.Broadcaster,
		DefaultDuration:      params.Config.Auction.DefaultDuration,
		DefaultStartingPrice: defaultStartingPrice,
		Logger:               params.Logger,
	})

	return &Server{
		handler:    handler,
		httpServer: newHTTPServer(params.Config.Server.Port, handler),
		config:     params.Config,
		logger:     params.Logger.With().Str("component", "ws_server").Logger(),
	}, nil
}

func newHTTPServer(port string, handler *WsHandler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	mux.HandleFunc("/health", handleHealth)

	return &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Minute,
	}
}

// Start starts the WebSocket server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Server.Port).Msg("Starting WebSocket server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}

	return nil
}

// Stop gracefully stops the WebSocket server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Int("connected_clients", s.handler.GetConnectedClients()).Msg("Stopping WebSocket server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown WebSocket server: %w", err)
	}

	s.logger.Info().Msg("WebSocket server stopped")
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok", "service": "auction-ledger"}`))
}
