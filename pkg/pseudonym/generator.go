// Package pseudonym mints rotating anonymous identifiers for subjects.
//
// An identifier depends only on the subject id, the installation secret, the
// start of the active rotation period and the caller-supplied scope. It never
// depends on PHI. Within one period the mapping is deterministic; a new period
// yields unrelated identifiers.
package pseudonym

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"math"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/synaptica-ai/mlprofile/pkg/audit"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"golang.org/x/crypto/pbkdf2"
)

const (
	Prefix              = "anon_"
	IdentifierLength    = 32
	DefaultRotationDays = 90
	MinIterations       = 100000
	DefaultCacheSize    = 10000

	saltLabel = "mlprofile-pseudonym-v1"
)

// Anchor is the fixed epoch rotation periods are aligned to.
var Anchor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var ErrMissingSubjectID = errors.New("subject id is required")

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Scope is the caller context a pseudonym is bound to, e.g. {"purpose": "ml"}.
type Scope map[string]string

// canonical renders the scope as a sorted, percent-escaped query string so
// distinct scopes never share a rendering.
func (s Scope) canonical() string {
	if len(s) == 0 {
		return ""
	}
	values := make(url.Values, len(s))
	for k, v := range s {
		values.Set(k, v)
	}
	return values.Encode()
}

type RotationInfo struct {
	PeriodIndex  int64     `json:"period_index"`
	PeriodDays   int       `json:"period_days"`
	CurrentStart time.Time `json:"current_start"`
	NextStart    time.Time `json:"next_start"`
}

type Option func(*Generator)

func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

func WithRotationDays(days int) Option {
	return func(g *Generator) {
		if days > 0 {
			g.rotationDays = days
		}
	}
}

// WithIterations raises the PBKDF2 cost. Values below MinIterations are ignored.
func WithIterations(n int) Option {
	return func(g *Generator) {
		if n >= MinIterations {
			g.iterations = n
		}
	}
}

// WithCacheSize bounds the memo cache; zero disables it.
func WithCacheSize(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.cache = newFIFOCache(n)
		}
	}
}

func WithAuditSink(sink audit.Sink) Option {
	return func(g *Generator) {
		g.sink = sink
	}
}

type Generator struct {
	secret       []byte
	rotationDays int
	iterations   int
	clock        func() time.Time
	offset       atomic.Int64
	cache        *fifoCache
	sink         audit.Sink
}

// NewGenerator builds a generator keyed by the installation secret. An empty
// secret is replaced with a random one, which makes identifiers unstable
// across restarts.
func NewGenerator(secret string, opts ...Option) *Generator {
	g := &Generator{
		secret:       []byte(secret),
		rotationDays: DefaultRotationDays,
		iterations:   MinIterations,
		clock:        time.Now,
		cache:        newFIFOCache(DefaultCacheSize),
		sink:         audit.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if len(g.secret) == 0 {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic("pseudonym: crypto/rand unavailable: " + err.Error())
		}
		g.secret = []byte(hex.EncodeToString(buf))
		logger.Log.Warn("no pseudonym secret configured, using an ephemeral secret")
	}
	return g
}

// Generate returns the identifier for subjectID under scope in the active period.
func (g *Generator) Generate(ctx context.Context, subjectID string, scope Scope) (string, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", ErrMissingSubjectID
	}
	period := g.periodIndex(g.clock())
	canonical := scope.canonical()
	key := cacheKey(subjectID, canonical, period)

	id, cached := g.cache.get(key)
	if !cached {
		id = g.derive(subjectID, canonical, g.periodStart(period))
		g.cache.put(key, id)
	}

	audit.Emit(ctx, g.sink, audit.NewRecord(g.clock(), audit.OpPseudonymGenerate, subjectID, models.OutcomeSuccess, map[string]interface{}{
		"period_index": period,
		"cached":       cached,
	}))
	return id, nil
}

// Validate recomputes the identifier and compares it in constant time.
func (g *Generator) Validate(ctx context.Context, subjectID, candidate string, scope Scope) bool {
	if strings.TrimSpace(subjectID) == "" {
		return false
	}
	period := g.periodIndex(g.clock())
	expected := g.derive(subjectID, scope.canonical(), g.periodStart(period))
	ok := subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1

	outcome := models.OutcomeSuccess
	if !ok {
		outcome = models.OutcomeFailure
	}
	audit.Emit(ctx, g.sink, audit.NewRecord(g.clock(), audit.OpPseudonymValidate, subjectID, outcome, nil))
	return ok
}

// Rotate advances the active period by one window and drops memoized identifiers.
func (g *Generator) Rotate(ctx context.Context) RotationInfo {
	g.offset.Add(1)
	g.cache.purge()
	info := g.Schedule()
	audit.Emit(ctx, g.sink, audit.NewRecord(g.clock(), audit.OpPseudonymRotate, "", models.OutcomeSuccess, map[string]interface{}{
		"period_index":  info.PeriodIndex,
		"current_start": info.CurrentStart.Format("2006-01-02"),
	}))
	return info
}

func (g *Generator) Schedule() RotationInfo {
	period := g.periodIndex(g.clock())
	start := g.periodStart(period)
	return RotationInfo{
		PeriodIndex:  period,
		PeriodDays:   g.rotationDays,
		CurrentStart: start,
		NextStart:    start.AddDate(0, 0, g.rotationDays),
	}
}

// CacheLen reports the number of memoized identifiers.
func (g *Generator) CacheLen() int {
	return g.cache.len()
}

func (g *Generator) periodIndex(now time.Time) int64 {
	days := now.UTC().Sub(Anchor).Hours() / 24
	return int64(math.Floor(days/float64(g.rotationDays))) + g.offset.Load()
}

func (g *Generator) periodStart(period int64) time.Time {
	return Anchor.AddDate(0, 0, int(period)*g.rotationDays)
}

func (g *Generator) derive(subjectID, canonicalScope string, periodStart time.Time) string {
	var input strings.Builder
	input.WriteString(subjectID)
	input.WriteByte(0)
	input.Write(g.secret)
	input.WriteByte(0)
	input.WriteString(periodStart.Format("2006-01-02"))
	input.WriteByte(0)
	input.WriteString(canonicalScope)

	salt := append([]byte(saltLabel), g.secret...)
	key := pbkdf2.Key([]byte(input.String()), salt, g.iterations, 32, sha256.New)
	encoded := strings.ToLower(encoding.EncodeToString(key))
	return Prefix + encoded[:IdentifierLength-len(Prefix)]
}

func cacheKey(subjectID, canonicalScope string, period int64) string {
	h := sha256.New()
	h.Write([]byte(subjectID))
	h.Write([]byte{0})
	h.Write([]byte(canonicalScope))
	h.Write([]byte{0})
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(uint64(period) >> (8 * i))
	}
	h.Write(buf[:])
	return hex.EncodeToString(h.Sum(nil))
}
