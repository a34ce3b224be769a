package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dusted-go/logging/prettylog"
	"github.com/go-chi/chi/v5/middleware"
)

// Log formats accepted by LoadConfig's logformat flag.
const (
	LogText    string = "text"
	LogJSON    string = "json"
	LogPretty  string = "pretty"
	LogDiscard string = "discard"
)

// LogFormats lists the allowed log formats, for flag usage text.
var LogFormats = []string{LogText, LogJSON, LogPretty, LogDiscard}

// LogLevels lists the allowed log levels, for flag usage text.
var LogLevels = []string{"DEBUG", "INFO", "WARN", "ERROR"}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelDebug, fmt.Errorf("log level %q not known", level)
	}
}

// initLogger builds a slog.Logger in the requested format, backed by a
// LevelVar the harness exposes at runtime through its /loglevel routes
// so an operator can raise verbosity on a live ingest without a restart.
func initLogger(level, format string) (*slog.Logger, *slog.LevelVar, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	logLevel := new(slog.LevelVar)
	logLevel.Set(lvl)

	var logger *slog.Logger
	switch format {
	case LogText:
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	case LogJSON:
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	case LogPretty:
		f := func(groups []string, a slog.Attr) slog.Attr { return a }
		logger = slog.New(prettylog.NewHandler(&slog.HandlerOptions{
			Level:       logLevel,
			AddSource:   false,
			ReplaceAttr: f,
		}))
	case LogDiscard:
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: logLevel}))
	default:
		return nil, nil, fmt.Errorf("logFormat %q not known", format)
	}
	return logger, logLevel, nil
}

// requestLogger logs each request's outcome alongside the current
// session's domain state (the parser's mime once an init segment has
// been parsed, and its latest sequence number once a media segment has
// been published), rather than bare HTTP
// fields. A panic is recovered and reported as an error with a stack
// trace before the handler chain unwinds.
func (h *Harness) requestLogger(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("panic handling request",
					"request_id", requestID(r),
					"recover_info", rec,
					"debug_stack", debug.Stack())
				http.Error(ww, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}

			latencyMS := fmt.Sprintf("%.3f", float64(time.Since(start).Nanoseconds())/1e6)
			entry := h.log.With(
				"request_id", requestID(r),
				"remote_ip", r.RemoteAddr,
				"method", r.Method,
				"url", r.URL.Path,
				"status", ww.Status(),
				"latency_ms", latencyMS,
				"bytes_out", ww.BytesWritten(),
				"hls_base", h.cfg.HLSBase,
			)
			if mime := h.parser.Mime(); mime != "" {
				entry = entry.With("mime", mime)
			}
			if seq := h.parser.Sequence(); seq >= 0 {
				entry = entry.With("sequence", seq)
			}
			entry.Info("request")
		}()

		next.ServeHTTP(ww, r)
	}
	return http.HandlerFunc(fn)
}

func requestID(r *http.Request) string {
	id, ok := r.Context().Value(middleware.RequestIDKey).(string)
	if !ok {
		return "-"
	}
	return id
}

// logLevelGet reports the harness's current runtime log level.
func (h *Harness) logLevelGet(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintln(w, h.logLevel.Level().String())
}

// logLevelSet adjusts the harness's runtime log level from a posted
// form, e.g. curl -F level=debug <server>/loglevel.
func (h *Harness) logLevelSet(w http.ResponseWriter, r *http.Request) {
	previous := h.logLevel.Level().String()
	if err := r.ParseMultipartForm(128); err != nil {
		http.Error(w, "Incorrect form data", http.StatusBadRequest)
		return
	}
	newLevel := r.FormValue("level")
	lvl, err := parseLevel(newLevel)
	if err != nil {
		http.Error(w, fmt.Sprintf("Incorrect log level %q", newLevel), http.StatusBadRequest)
		return
	}
	h.logLevel.Set(lvl)
	fmt.Fprintf(w, "%q -> %q\n", previous, h.logLevel.Level().String())
}
