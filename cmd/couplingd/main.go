// couplingd daemon -- received-bounding-box connectivity core.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/couplingrt/rbbox/internal/bbox"
	"github.com/couplingrt/rbbox/internal/config"
	"github.com/couplingrt/rbbox/internal/mesh"
	rbboxmetrics "github.com/couplingrt/rbbox/internal/metrics"
	"github.com/couplingrt/rbbox/internal/partition"
	"github.com/couplingrt/rbbox/internal/transport"
	appversion "github.com/couplingrt/rbbox/internal/version"
)

// shutdownTimeout bounds how long the metrics/status HTTP server is given
// to drain active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

// errUnknownRole indicates a role string this daemon does not know how to
// wire a transport for. A config loaded from a file has passed
// config.Validate, which restricts Role to "master"/"slave"; the default
// config used when no -config flag is given leaves Role empty and ends here.
var errUnknownRole = errors.New("couplingd: unknown participant role")

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse flags, load config.
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	// 2. Logger.
	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("couplingd starting",
		slog.String("version", appversion.Version),
		slog.String("participant", cfg.Participant.Name),
		slog.String("role", cfg.Participant.Role),
		slog.String("mesh", cfg.Mesh.Name),
	)

	// 3. Prometheus registry + collector.
	reg := prometheus.NewRegistry()
	collector := rbboxmetrics.NewCollector(reg)

	if err := runParticipant(cfg, collector, reg, logger); err != nil {
		logger.Error("couplingd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("couplingd stopped")
	return 0
}

// runParticipant wires the transport channels, runs the two-phase
// connectivity protocol once, and serves /metrics and /status until
// interrupted.
func runParticipant(cfg *config.Config, collector *rbboxmetrics.Collector, reg *prometheus.Registry, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	rbb, closer, err := buildReceivedBoundingBox(gCtx, cfg, collector, logger)
	if err != nil {
		return fmt.Errorf("build connectivity core: %w", err)
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("failed to close transport channels", slog.String("error", err.Error()))
		}
	}()

	status := &statusStore{}
	httpSrv := newHTTPServer(cfg.Metrics, reg, status)

	g.Go(func() error {
		return runProtocol(gCtx, rbb, cfg, status, logger)
	})

	g.Go(func() error {
		logger.Info("metrics/status server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("metrics_path", cfg.Metrics.Path),
		)
		return listenAndServe(gCtx, &net.ListenConfig{}, httpSrv, cfg.Metrics.Addr)
	})

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, httpSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run participant: %w", err)
	}
	return nil
}

// runProtocol drives CommunicateBoundingBox (master only) then
// ComputeBoundingBox exactly once, publishing the result to status.
func runProtocol(ctx context.Context, rbb *partition.ReceivedBoundingBox, cfg *config.Config, status *statusStore, logger *slog.Logger) error {
	if cfg.Participant.Role == "master" {
		if err := rbb.CommunicateBoundingBox(ctx); err != nil {
			return fmt.Errorf("communicate bounding box: %w", err)
		}
	}

	if err := rbb.ComputeBoundingBox(ctx); err != nil {
		return fmt.Errorf("compute bounding box: %w", err)
	}

	status.set(rbb.State(), rbb.FeedbackMap())

	logger.Info("connectivity computed",
		slog.String("state", rbb.State().String()),
		slog.Any("local_overlap", rbb.LocalOverlap()),
	)
	if cfg.Participant.Role == "master" {
		logger.Info("feedback map assembled", slog.Any("feedback_map", rbb.FeedbackMap()))
	}

	return nil
}

// -------------------------------------------------------------------------
// Transport wiring
// -------------------------------------------------------------------------

// buildReceivedBoundingBox dials or listens the channels this rank's role
// requires, attaches a synthetic demo mesh (internal/mesh), and constructs
// the partition.ReceivedBoundingBox. The returned closer releases every
// opened connection.
func buildReceivedBoundingBox(ctx context.Context, cfg *config.Config, collector *rbboxmetrics.Collector, logger *slog.Logger) (*partition.ReceivedBoundingBox, io.Closer, error) {
	role, err := roleFromConfig(cfg.Participant.Role)
	if err != nil {
		return nil, nil, err
	}

	var closers closerGroup

	var m2nCh partition.M2NChannel
	if role == partition.RoleMaster {
		conn, err := dialOrListenM2N(ctx, cfg.Transport, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("m2n channel: %w", err)
		}
		closers = append(closers, conn)
		m2nCh = transport.NewM2N(conn)
	}

	intraCh, intraClosers, err := buildIntraChannel(ctx, cfg, role, logger)
	if err != nil {
		closers.Close()
		return nil, nil, fmt.Errorf("intra channel: %w", err)
	}
	closers = append(closers, intraClosers...)

	mapping := mesh.StaticMapping{Output: demoMesh(cfg)}

	rbb := partition.New(partition.Config{
		Dim:             cfg.Mesh.Dim,
		Role:            role,
		LocalSize:       cfg.Participant.LocalSize,
		LocalRank:       cfg.Participant.LocalRank,
		SafetyFactor:    cfg.Participant.SafetyFactor,
		FromMapping:     mapping,
		M2N:             m2nCh,
		Intra:           intraCh,
		ParticipantName: cfg.Participant.Name,
		MeshName:        cfg.Mesh.Name,
		Logger:          logger,
		Metrics:         collector,
	})

	return rbb, closers, nil
}

// dialOrListenM2N opens the inter-participant channel. Exactly one of
// M2NDialAddr/M2NListenAddr is set (config.Validate enforces this); the
// protocol itself does not care which side dialed.
func dialOrListenM2N(ctx context.Context, tcfg config.TransportConfig, logger *slog.Logger) (net.Conn, error) {
	if tcfg.M2NDialAddr != "" {
		logger.Info("dialing remote master", slog.String("addr", tcfg.M2NDialAddr))
		return transport.Dial(ctx, tcfg.M2NDialAddr)
	}

	logger.Info("listening for remote master", slog.String("addr", tcfg.M2NListenAddr))
	ln, err := transport.Listen(ctx, tcfg.M2NListenAddr)
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	return ln.Accept()
}

// buildIntraChannel opens the intra-participant channel: the master
// listens for every local slave and sorts connections into ascending rank
// order using a one-int rank handshake each slave sends immediately after
// connecting; a slave dials the local master and announces its own rank.
func buildIntraChannel(ctx context.Context, cfg *config.Config, role partition.Role, logger *slog.Logger) (partition.IntraChannel, closerGroup, error) {
	switch role {
	case partition.RoleMaster:
		logger.Info("listening for local slaves", slog.String("addr", cfg.Transport.IntraListenAddr))
		ln, err := transport.Listen(ctx, cfg.Transport.IntraListenAddr)
		if err != nil {
			return nil, nil, err
		}
		defer ln.Close()

		n := cfg.Participant.LocalSize - 1
		raw, err := transport.AcceptN(ln, n)
		if err != nil {
			return nil, nil, fmt.Errorf("accept %d local slaves: %w", n, err)
		}

		ordered, err := orderByAnnouncedRank(raw, n)
		if err != nil {
			for _, c := range raw {
				_ = c.Close()
			}
			return nil, nil, err
		}

		return transport.NewIntraRoot(ordered), closerGroup(ordered), nil

	case partition.RoleSlave:
		logger.Info("dialing local master", slog.String("addr", cfg.Transport.IntraMasterAddr))
		conn, err := transport.Dial(ctx, cfg.Transport.IntraMasterAddr)
		if err != nil {
			return nil, nil, err
		}
		if err := transport.WriteInt(conn, cfg.Participant.LocalRank); err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("announce local rank: %w", err)
		}
		return transport.NewIntraLeaf(conn), closerGroup{conn}, nil

	default:
		return nil, nil, errUnknownRole
	}
}

// orderByAnnouncedRank reads one rank-announcement int off each connection
// and returns the connections reordered so index i holds rank i+1's
// connection, matching IntraRoot's indexing contract.
func orderByAnnouncedRank(conns []net.Conn, n int) ([]net.Conn, error) {
	ordered := make([]net.Conn, n)
	for _, c := range conns {
		rank, err := transport.ReadInt(c)
		if err != nil {
			return nil, fmt.Errorf("read rank announcement: %w", err)
		}
		if rank <= 0 || rank > n {
			return nil, fmt.Errorf("rank announcement %d out of range [1,%d]", rank, n)
		}
		ordered[rank-1] = c
	}
	for i, c := range ordered {
		if c == nil {
			return nil, fmt.Errorf("no connection announced for rank %d", i+1)
		}
	}
	return ordered, nil
}

// demoMesh builds a synthetic per-rank bounding box so the connectivity
// protocol has real geometry to exercise: consecutive ranks' unit boxes
// share a boundary along axis 0, guaranteeing overlap with their
// immediate neighbor under the closed-interval predicate
// (bbox.Overlapping).
func demoMesh(cfg *config.Config) *mesh.StaticMesh {
	dim := cfg.Mesh.Dim
	lo := make([]float64, dim)
	hi := make([]float64, dim)
	for d := 1; d < dim; d++ {
		hi[d] = 1
	}
	lo[0] = float64(cfg.Participant.LocalRank)
	hi[0] = lo[0] + 1

	bb, _ := bbox.New(lo, hi)
	return mesh.NewStaticMeshFromBoundingBox(bb)
}

func roleFromConfig(role string) (partition.Role, error) {
	switch role {
	case "master":
		return partition.RoleMaster, nil
	case "slave":
		return partition.RoleSlave, nil
	default:
		return 0, fmt.Errorf("%w: %q", errUnknownRole, role)
	}
}

// closerGroup closes every member, returning the first error encountered.
type closerGroup []net.Conn

func (g closerGroup) Close() error {
	var firstErr error
	for _, c := range g {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// -------------------------------------------------------------------------
// Status + metrics HTTP surface
// -------------------------------------------------------------------------

// statusStore holds the most recently computed protocol result for the
// /status endpoint. Written once, by the protocol goroutine; read
// concurrently by HTTP handlers.
type statusStore struct {
	mu       sync.RWMutex
	state    partition.State
	feedback partition.FeedbackMap
}

func (s *statusStore) set(state partition.State, fm partition.FeedbackMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.feedback = fm
}

func (s *statusStore) snapshot() (partition.State, partition.FeedbackMap) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.feedback
}

// statusResponse is the JSON shape served at GET /status.
type statusResponse struct {
	State       string                `json:"state"`
	FeedbackMap partition.FeedbackMap `json:"feedback_map,omitempty"`
}

func newHTTPServer(cfg config.MetricsConfig, reg *prometheus.Registry, status *statusStore) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", newStatusHandler(status))

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newStatusHandler(status *statusStore) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state, fm := status.snapshot()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statusResponse{
			State:       state.String(),
			FeedbackMap: fm,
		}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func gracefulShutdown(ctx context.Context, srv *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Config loading + logging
// -------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
