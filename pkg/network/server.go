package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"strconv"
	"strings"
	"time"

	authproviders "github.com/cbodonnell/wordrush/pkg/auth/providers"
	gametypes "github.com/cbodonnell/wordrush/pkg/game/types"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/messages"
	"github.com/cbodonnell/wordrush/pkg/metrics"
	"github.com/cbodonnell/wordrush/pkg/version"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/skip2/go-qrcode"
)

// Coordinator is the game as seen by a connection.
type Coordinator interface {
	Join(ctx context.Context, identity string) (gametypes.JoinResult, error)
	SelectWord(ctx context.Context, identity string, word string) (gametypes.SelectResult, error)
	Disconnect(ctx context.Context, identity string) error
	Status() gametypes.Status
}

// WSServer serves the websocket endpoint and the small HTTP API around it.
type WSServer struct {
	server *http.Server
	tls    *TLSConfig

	prefix         string
	authProvider   authproviders.AuthProvider
	coordinator    Coordinator
	group          *Group
	sendBufferSize int
	writeTimeout   time.Duration
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Bind string
	Port int
	TLS  *TLSConfig
	// Prefix is prepended to every route, e.g. "/wordrush"
	Prefix         string
	AuthProvider   authproviders.AuthProvider
	Coordinator    Coordinator
	Group          *Group
	SendBufferSize int
	WriteTimeout   time.Duration
	// Profile registers net/http/pprof handlers
	Profile bool
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	s := &WSServer{
		tls:            opts.TLS,
		prefix:         strings.TrimSuffix(opts.Prefix, "/"),
		authProvider:   opts.AuthProvider,
		coordinator:    opts.Coordinator,
		group:          opts.Group,
		sendBufferSize: opts.SendBufferSize,
		writeTimeout:   opts.WriteTimeout,
	}
	if s.group == nil {
		s.group = NewGroup()
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = 10 * time.Second
	}

	router := mux.NewRouter()
	router.Handle(s.prefix+"/ws", NewAuthMiddleware(s.authProvider)(http.HandlerFunc(s.handleWS))).Methods(http.MethodGet)
	router.Handle(s.prefix+"/leaderboard", gzhttp.GzipHandler(http.HandlerFunc(s.handleLeaderboard))).Methods(http.MethodGet, http.MethodOptions)
	router.HandleFunc(s.prefix+"/healthz", handleHealthz).Methods(http.MethodGet)
	router.HandleFunc(s.prefix+"/version", handleVersion).Methods(http.MethodGet)
	router.HandleFunc(s.prefix+"/qr", s.handleQR).Methods(http.MethodGet)
	router.Handle(s.prefix+"/metrics", metrics.Handler()).Methods(http.MethodGet)
	if opts.Profile {
		registerProfileHandlers(router, s.prefix)
	}

	s.server = &http.Server{
		Addr:              net.JoinHostPort(opts.Bind, strconv.Itoa(opts.Port)),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *WSServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *WSServer) Group() *Group {
	return s.group
}

// Start serves until ctx is done or the listener fails.
func (s *WSServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error("Failed to shut down WebSocket server: %v", err)
		}
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return nil
		}
		return fmt.Errorf("websocket server error: %v", err)
	}
	return nil
}

func (s *WSServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	status := s.coordinator.Status()
	leaderboard := status.Leaderboard
	if leaderboard == nil {
		leaderboard = []gametypes.LeaderboardEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(&messages.LeaderboardResponse{
		ActiveUsers: status.ActiveUsers,
		TargetWord:  status.TargetWord,
		Leaderboard: leaderboard,
	}); err != nil {
		log.Error("Failed to write leaderboard: %v", err)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Ok\n"))
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "wordrush %s\n", version.Get())
}

// handleQR renders a PNG QR code pointing players at this server.
func (s *WSServer) handleQR(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	url := scheme + "://" + r.Host + s.prefix + "/"

	const qrSize = 320
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		log.Error("Failed to generate QR code for %s: %v", url, err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func registerProfileHandlers(router *mux.Router, prefix string) {
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		router.Handle(prefix+"/pprof/"+name, pprof.Handler(name)).Methods(http.MethodGet)
	}
	router.HandleFunc(prefix+"/pprof/cmdline", pprof.Cmdline).Methods(http.MethodGet)
	router.HandleFunc(prefix+"/pprof/profile", pprof.Profile).Methods(http.MethodGet)
	router.HandleFunc(prefix+"/pprof/symbol", pprof.Symbol).Methods(http.MethodGet)
	router.HandleFunc(prefix+"/pprof/trace", pprof.Trace).Methods(http.MethodGet)
}
