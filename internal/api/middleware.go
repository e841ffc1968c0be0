package api

import (
    "context"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/google/uuid"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "golang.org/x/time/rate"

    "fieldcrm/internal/metrics"
)

// reqInfo is shared by the outer middlewares with the inner ones that learn more about
// the request (the authenticated user).
type reqInfo struct {
    id     string
    userID int64
}

type ctxKeyReqInfo struct{}

func reqInfoFrom(ctx context.Context) *reqInfo {
    info, _ := ctx.Value(ctxKeyReqInfo{}).(*reqInfo)
    return info
}

func requestID(ctx context.Context) string {
    if info := reqInfoFrom(ctx); info != nil { return info.id }
    return ""
}

// withRequestID honours an incoming X-Request-ID or generates one, and echoes it back.
func withRequestID(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        id := r.Header.Get("X-Request-ID")
        if id == "" || len(id) > 128 { id = uuid.NewString() }
        w.Header().Set("X-Request-ID", id)
        ctx := context.WithValue(r.Context(), ctxKeyReqInfo{}, &reqInfo{id: id})
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}

// observe records metrics and logs one line per request.
func (s *Server) observe(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
        next.ServeHTTP(ww, r)
        dur := time.Since(start)

        status := ww.Status()
        if status == 0 { status = http.StatusOK }
        path := r.URL.Path
        if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
            path = rc.RoutePattern()
        }
        code := strconv.Itoa(status)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, code).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, code).Observe(dur.Seconds())

        lvl := zapcore.InfoLevel
        switch {
        case status >= 500:
            lvl = zapcore.ErrorLevel
        case status >= 400:
            lvl = zapcore.WarnLevel
        }
        if ce := s.Log.Check(lvl, "http request"); ce != nil {
            fields := []zap.Field{
                zap.String("method", r.Method),
                zap.String("path", r.URL.Path),
                zap.Int("status", status),
                zap.Duration("latency", dur),
                zap.String("remote", r.RemoteAddr),
            }
            if info := reqInfoFrom(r.Context()); info != nil {
                fields = append(fields, zap.String("request_id", info.id))
                if info.userID != 0 { fields = append(fields, zap.Int64("user_id", info.userID)) }
            }
            ce.Write(fields...)
        }
    })
}

// cors answers preflight requests and sets the allow-origin header from allow_origins
// (comma separated, "*" for any).
func (s *Server) cors(next http.Handler) http.Handler {
    allowed := map[string]bool{}
    for _, o := range strings.Split(s.Cfg.AllowOrigins, ",") {
        if o = strings.TrimSpace(o); o != "" { allowed[o] = true }
    }
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        origin := r.Header.Get("Origin")
        if origin != "" && (allowed["*"] || allowed[origin]) {
            if allowed["*"] {
                w.Header().Set("Access-Control-Allow-Origin", "*")
            } else {
                w.Header().Set("Access-Control-Allow-Origin", origin)
                w.Header().Add("Vary", "Origin")
            }
            w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID, X-User-Id")
            w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
            w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
        }
        if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// limiterIdle is how long a caller's bucket survives without requests.
const limiterIdle = 10 * time.Minute

type limiterEntry struct {
    lim  *rate.Limiter
    seen time.Time
}

// callerLimiter keeps one token bucket per caller and forgets callers idle for limiterIdle.
// A nil limiter allows everything.
type callerLimiter struct {
    mu        sync.Mutex
    rps       rate.Limit
    burst     int
    m         map[int64]*limiterEntry
    now       func() time.Time
    lastSweep time.Time
}

func newCallerLimiter(rps float64, burst int) *callerLimiter {
    if rps <= 0 { return nil }
    if burst <= 0 { burst = 1 }
    return &callerLimiter{rps: rate.Limit(rps), burst: burst, m: map[int64]*limiterEntry{}, now: time.Now}
}

func (l *callerLimiter) allow(userID int64) bool {
    if l == nil { return true }
    now := l.now()
    l.mu.Lock()
    if now.Sub(l.lastSweep) >= limiterIdle {
        for id, e := range l.m {
            if now.Sub(e.seen) >= limiterIdle { delete(l.m, id) }
        }
        l.lastSweep = now
    }
    e, ok := l.m[userID]
    if !ok {
        e = &limiterEntry{lim: rate.NewLimiter(l.rps, l.burst)}
        l.m[userID] = e
    }
    e.seen = now
    l.mu.Unlock()
    return e.lim.AllowN(now, 1)
}

// rateLimit runs after authenticate and keys on the caller's user id.
func (s *Server) rateLimit(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !s.limiter.allow(callerFrom(r.Context()).UserID) {
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}
