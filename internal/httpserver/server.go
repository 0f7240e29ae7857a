package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lanshare/internal/clock"
	"lanshare/internal/config"
	"lanshare/internal/netinfo"
	"lanshare/internal/presence"
	"lanshare/internal/remote"
	"lanshare/internal/session"
	"lanshare/internal/share"
	"lanshare/internal/upload"
)

type Options struct {
	Config config.Config
	Logger *slog.Logger

	// Clock and IDs default to the real clock and UUIDs.
	Clock clock.Clock
	IDs   clock.IDGenerator

	// Root defaults to a new, unset SharedRoot.
	Root *share.Root
	// Prober defaults to remote.NewProber(Config.Connect.Timeout).
	Prober *remote.Prober

	// LocalIP is the address shown to visitors. Empty means it is derived
	// from Config.Host.
	LocalIP string
}

// Server holds all process wide state: the shared root, the presence
// registry and the session sealing key. Handlers never reach for globals.
type Server struct {
	cfg      config.Config
	log      *slog.Logger
	clock    clock.Clock
	root     *share.Root
	presence *presence.Registry
	sessions *session.Resolver
	prober   *remote.Prober
	saver    upload.Saver
	metrics  *Metrics
	validate *validator.Validate

	pages   map[string]*template.Template
	assets  fs.FS
	localIP string
	started time.Time
}

func New(opts Options) (*Server, error) {
	s := &Server{
		cfg:      opts.Config,
		log:      opts.Logger,
		clock:    opts.Clock,
		root:     opts.Root,
		prober:   opts.Prober,
		localIP:  opts.LocalIP,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.root == nil {
		s.root = &share.Root{}
	}
	if s.prober == nil {
		s.prober = remote.NewProber(s.cfg.Connect.Timeout)
	}
	if s.localIP == "" {
		s.localIP = netinfo.AdvertisedHost(s.cfg.Host)
	}

	s.presence = presence.New(presence.Options{
		Clock:     s.clock,
		Staleness: s.cfg.Presence.Staleness,
		Capacity:  s.cfg.Presence.ActivityCapacity,
		OnActivity: func(a presence.Activity) {
			if s.metrics != nil {
				s.metrics.ObserveActivity(a)
			}
		},
	})
	if s.cfg.Metrics {
		s.metrics = NewMetrics(s.presence.CountActive)
	}

	sessions, err := session.NewResolver(session.Options{
		Secret: s.cfg.SessionSecret,
		Clock:  s.clock,
		IDs:    opts.IDs,
	})
	if err != nil {
		return nil, err
	}
	s.sessions = sessions

	pages, err := loadPages()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	s.pages = pages
	assets, err := fs.Sub(embeddedWeb, "web/assets")
	if err != nil {
		return nil, err
	}
	s.assets = assets
	s.started = s.clock.Now()
	return s, nil
}

// Root is the SharedRoot served by s.
func (s *Server) Root() *share.Root { return s.root }

// Presence is the registry of connected sessions.
func (s *Server) Presence() *presence.Registry { return s.presence }

// URL is the address other devices on the LAN should open.
func (s *Server) URL() string { return netinfo.URL(s.localIP, s.cfg.Port) }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{
			Registry: s.metrics.Registry,
		}))
	}
	if s.cfg.WebDAV {
		mux.Handle("/dav/", s.instrument("/dav/", s.davHandler()))
	}
	mux.Handle("GET /assets/", http.StripPrefix("/assets/", http.FileServer(http.FS(s.assets))))

	s.handle(mux, "GET /{$}", s.handleHome)
	s.handle(mux, "POST /set_folder", s.handleSetFolder)
	s.handle(mux, "GET /browse", s.handleBrowse)
	s.handle(mux, "GET /browse/{subpath...}", s.handleBrowse)
	s.handle(mux, "GET /download/{filename...}", s.handleDownload)
	s.handle(mux, "GET /zip/{path...}", s.handleZip)
	s.handle(mux, "GET /thumb", s.handleThumb)
	s.handle(mux, "GET /connect", s.handleConnect)
	s.handle(mux, "POST /connect_to", s.handleConnectTo)
	s.handle(mux, "POST /upload", s.handleUpload)

	s.handle(mux, "POST /api/set_username", s.handleSetUsername)
	s.handle(mux, "GET /api/connected_users", s.handleConnectedUsers)
	s.handle(mux, "GET /api/user_activities", s.handleUserActivities)
	s.handle(mux, "GET /api/server_stats", s.handleServerStats)
	s.handle(mux, "POST /api/heartbeat", s.handleHeartbeat)

	var h http.Handler = mux
	h = recoverPanics(h)
	h = accessLog(h)
	h = requestID(s.log, h)
	return withHeaders(h)
}

func (s *Server) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, fn))
}

// --- session and presence helpers ---

// session resolves the caller's identity and queues the cookie when a new
// one was minted.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, fresh := s.sessions.Resolve(r)
	if fresh {
		s.saveSession(w, r, sess)
	}
	return sess
}

// saveSession replaces any session cookie already queued on w.
func (s *Server) saveSession(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	w.Header().Del("Set-Cookie")
	if err := s.sessions.Save(w, sess); err != nil {
		LoggerFromContext(r.Context()).Error("save session", "error", err)
	}
}

func (s *Server) touch(r *http.Request, sess *session.Session, location string) {
	s.presence.Touch(sess.ID, sess.Name(), clientIP(r), location, sess.CreatedAt)
}

func (s *Server) record(r *http.Request, sess *session.Session, kind presence.Kind, detail string) {
	s.presence.RecordActivity(sess.ID, sess.Name(), kind, detail, clientIP(r))
}

func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, sess *session.Session, to, category, msg string) {
	sess.AddFlash(category, msg)
	s.saveSession(w, r, sess)
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// --- helpers ---

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var errBadJSON = errors.New("request body must be a JSON object")

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}
