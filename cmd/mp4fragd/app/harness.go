// Package app wires the mp4frag Parser to a debug HTTP harness: an
// ffmpeg-style fMP4 byte stream is read from a file or stdin and fed
// to the parser on a dedicated goroutine, while chi routes expose the
// init segment, media segments, and playlist the canonical way an HLS
// client expects to find them.
package app

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maxim729467/mp4frag"
	"github.com/maxim729467/mp4frag/internal/metrics"
)

// Harness owns a Parser and the HTTP router that exposes it.
type Harness struct {
	cfg      *Config
	log      *slog.Logger
	logLevel *slog.LevelVar
	parser   *mp4frag.Parser
}

// New builds a Harness from cfg, initializing the process logger in the
// format and level cfg requests.
func New(cfg *Config) (*Harness, error) {
	logger, logLevel, err := initLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	slog.SetDefault(logger)

	collector := metrics.New()
	opts := mp4frag.Options{
		HLSBase:        cfg.HLSBase,
		HLSListSize:    cfg.HLSListSize,
		BufferListSize: cfg.BufferListSize,
		Metrics:        collector,
		Logger:         logger,
	}
	return &Harness{
		cfg:      cfg,
		log:      logger,
		logLevel: logLevel,
		parser:   mp4frag.New(opts),
	}, nil
}

// Router builds the chi router exposing the harness's HTTP surface.
func (h *Harness) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(h.requestLogger)

	base := h.cfg.HLSBase
	r.Get(fmt.Sprintf("/live/%s.m3u8", base), h.playlistHandler)
	r.Get(fmt.Sprintf("/live/init-%s.mp4", base), h.initHandler)
	r.Get(fmt.Sprintf("/live/%s{seq:[0-9]+}.m4s", base), h.segmentHandler)
	r.Handle("/metrics", promhttp.HandlerFor(h.parser.Metrics().Registry(), promhttp.HandlerOpts{}))
	r.Get("/loglevel", h.logLevelGet)
	r.Post("/loglevel", h.logLevelSet)
	return r
}

func (h *Harness) playlistHandler(w http.ResponseWriter, r *http.Request) {
	m3u8 := h.parser.M3U8()
	if m3u8 == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	io.WriteString(w, m3u8)
}

func (h *Harness) initHandler(w http.ResponseWriter, r *http.Request) {
	blob := h.parser.Initialization()
	if blob == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", h.mimeOrDefault())
	w.Write(blob)
}

func (h *Harness) segmentHandler(w http.ResponseWriter, r *http.Request) {
	seq := chi.URLParam(r, "seq")
	data := h.parser.GetHlsSegment(seq)
	if data == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", h.mimeOrDefault())
	w.Write(data)
}

func (h *Harness) mimeOrDefault() string {
	if m := h.parser.Mime(); m != "" {
		return m
	}
	return "video/mp4"
}

// Ingest opens the configured input source and feeds it to the parser
// chunk by chunk until EOF or an error. A fatal parse error does not
// abort the process: it is logged and the parser is flushed, which
// discards everything parsed so far and lets the following bytes start
// a new session.
func (h *Harness) Ingest() error {
	src, closeFn, err := h.openInput()
	if err != nil {
		return err
	}
	defer closeFn()

	buf := make([]byte, h.cfg.ChunkSize)
	reader := bufio.NewReader(src)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if writeErr := h.parser.Write(buf[:n]); writeErr != nil {
				h.log.Error("parser reported fatal error, flushing", "err", writeErr)
				h.parser.Flush()
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading input: %w", readErr)
		}
	}
}

func (h *Harness) openInput() (io.Reader, func(), error) {
	if h.cfg.Input == "" || h.cfg.Input == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(h.cfg.Input)
	if err != nil {
		return nil, nil, fmt.Errorf("open input %q: %w", h.cfg.Input, err)
	}
	return f, func() { f.Close() }, nil
}

// ListenAndServe starts the HTTP server on the configured port.
func (h *Harness) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", h.cfg.Port)
	h.log.Info("mp4fragd listening", "addr", addr, "hlsBase", h.cfg.HLSBase)
	return http.ListenAndServe(addr, h.Router())
}
