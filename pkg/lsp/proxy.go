package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mocksoul/dprintx/pkg/log"
	"github.com/mocksoul/dprintx/pkg/matcher"
	"github.com/mocksoul/dprintx/pkg/mergeconf"
	"github.com/mocksoul/dprintx/pkg/routing"
)

// DefaultReadTimeout bounds waits for backend responses.
const DefaultReadTimeout = time.Second

// Spawner starts one backend for an effective config path.
type Spawner func(bin, configPath string) (*Backend, error)

// Proxy presents a single language server connection to the editor and fans
// work out across one backend per effective config. The client stream is
// read synchronously, one message at a time.
type Proxy struct {
	tracer      trace.Tracer
	cfg         *routing.Config
	matcher     *matcher.Matcher
	reg         *Registry
	out         *SyncWriter
	spawn       Spawner
	initParams  json.RawMessage
	guards      []*mergeconf.TempConfig
	readTimeout time.Duration
}

// NewProxy creates a new [Proxy] writing client-bound messages to w.
func NewProxy(cfg *routing.Config, m *matcher.Matcher, w io.Writer, opts ...ProxyOpt) *Proxy {
	p := &Proxy{
		tracer:      otel.Tracer("lsp-proxy"),
		cfg:         cfg,
		matcher:     m,
		reg:         NewRegistry(),
		out:         NewSyncWriter(w),
		spawn:       SpawnBackend,
		readTimeout: DefaultReadTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

type ProxyOpt func(*Proxy)

// WithReadTimeout sets the backend response wait bound.
func WithReadTimeout(d time.Duration) ProxyOpt {
	return func(p *Proxy) {
		p.readTimeout = d
	}
}

// WithSpawner overrides how backends are started.
func WithSpawner(s Spawner) ProxyOpt {
	return func(p *Proxy) {
		p.spawn = s
	}
}

// Run serves the client stream until it closes or an exit notification
// arrives. Merged config guards accumulate for the whole session and are
// released on return; a long session never frees a merged config while a
// request might still reference it.
func (p *Proxy) Run(ctx context.Context, r io.Reader) error {
	slog.Info("lsp proxy starting",
		slog.Duration("read_timeout", p.readTimeout),
	)

	defer p.releaseGuards()

	br := bufio.NewReader(r)

	for {
		raw, err := ReadMessage(br)
		if err != nil {
			// Closed client stream ends the session.
			slog.Debug("client stream closed", slog.Any("error", err))

			return nil
		}

		msg, err := ParseMessage(raw)
		if err != nil {
			continue
		}

		stop := p.dispatch(ctx, msg)
		if stop {
			return nil
		}
	}
}

func (p *Proxy) dispatch(ctx context.Context, msg *Message) (stop bool) {
	ctx, span := p.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("method", msg.Method),
		attribute.Bool("request", msg.IsRequest()),
	))
	defer span.End()

	switch {
	case msg.Method == "initialize":
		p.handleInitialize(ctx, msg)

	case msg.Method == "initialized":
		p.broadcast(msg.Raw)

	case msg.Method == "shutdown":
		p.handleShutdown(msg)

	case msg.Method == "exit":
		p.broadcast(msg.Raw)

		return true

	case strings.HasPrefix(msg.Method, "textDocument/"):
		p.handleTextDocument(ctx, msg)

	default:
		p.handleOther(msg)
	}

	return false
}

// handleInitialize spawns one backend per distinct profile referenced by the
// match rules, in first-seen order, initializes each, and relays the first
// backend's response. The client expects exactly one initialize response no
// matter how many backends exist.
func (p *Proxy) handleInitialize(ctx context.Context, msg *Message) {
	p.initParams = msg.Params

	var firstResponse []byte

	for _, profile := range p.cfg.Match.Profiles() {
		res, err := p.cfg.ResolveProfile(profile)
		if err != nil {
			log.WithContext(ctx).Warn("skipping profile", slog.String("profile", profile), slog.Any("error", err))

			continue
		}
		if res.Ignore {
			continue
		}

		b, err := p.ensureBackend(ctx, res.ConfigPath, false)
		if err != nil {
			log.WithContext(ctx).Error("spawn backend",
				slog.String("config", res.ConfigPath),
				slog.Any("error", err),
			)

			continue
		}

		init, err := p.initializeMessage(msg.ID, res.ConfigPath)
		if err != nil {
			continue
		}

		err = b.Send(init)
		if err != nil {
			log.WithContext(ctx).Warn("initialize backend", slog.String("config", res.ConfigPath), slog.Any("error", err))

			continue
		}

		resp, err := b.Receive(p.readTimeout, p.relayNotification)
		if err == nil && firstResponse == nil {
			firstResponse = resp
		}
	}

	if firstResponse != nil {
		p.writeOut(firstResponse)
	}
}

func (p *Proxy) handleShutdown(msg *Message) {
	for _, path := range p.reg.Paths() {
		b, ok := p.reg.Get(path)
		if !ok {
			continue
		}

		err := b.Send(msg.Raw)
		if err != nil {
			continue
		}

		_, _ = b.Receive(p.readTimeout, p.relayNotification)
	}

	p.writeOut(nullResponse(msg.ID))
}

// handleTextDocument routes a document message to the backend for its
// effective config, spawning and handshaking one lazily if needed.
func (p *Proxy) handleTextDocument(ctx context.Context, msg *Message) {
	uri, ok := msg.DocumentURI()
	if !ok {
		return
	}

	path := URIToPath(uri)

	res, err := p.matcher.Resolve(path)
	if err != nil || res == nil || res.Ignore {
		if err != nil {
			log.WithContext(ctx).Warn("resolve profile", slog.String("path", path), slog.Any("error", err))
		}

		// Unroutable file: answer requests with null, drop notifications.
		if msg.IsRequest() {
			p.writeOut(nullResponse(msg.ID))
		}

		return
	}

	effective := p.effectiveConfig(ctx, path, res.ConfigPath)

	b, err := p.ensureBackend(ctx, effective, true)
	if err != nil {
		log.WithContext(ctx).Error("spawn backend",
			slog.String("config", effective),
			slog.Any("error", err),
		)

		if msg.IsRequest() {
			p.writeOut(nullResponse(msg.ID))
		}

		return
	}

	err = b.Send(msg.Raw)
	if err != nil {
		log.WithContext(ctx).Warn("forward to backend", slog.String("config", effective), slog.Any("error", err))

		if msg.IsRequest() {
			p.writeOut(nullResponse(msg.ID))
		}

		return
	}

	if !msg.IsRequest() {
		return
	}

	t0 := time.Now()

	resp, err := b.Receive(p.readTimeout, p.relayNotification)
	if err != nil {
		log.WithContext(ctx).Warn("backend response",
			slog.String("method", msg.Method),
			slog.Duration("elapsed", time.Since(t0)),
			slog.Any("error", err),
		)
		p.writeOut(nullResponse(msg.ID))

		return
	}

	log.WithContext(ctx).Debug("backend responded",
		slog.String("method", msg.Method),
		slog.Duration("elapsed", time.Since(t0)),
	)
	p.writeOut(resp)
}

// handleOther broadcasts unknown methods to all backends; requests are
// answered with the first backend's reply.
func (p *Proxy) handleOther(msg *Message) {
	p.broadcast(msg.Raw)

	if !msg.IsRequest() {
		return
	}

	paths := p.reg.Paths()
	if len(paths) > 0 {
		if b, ok := p.reg.Get(paths[0]); ok {
			resp, err := b.Receive(p.readTimeout, p.relayNotification)
			if err == nil {
				p.writeOut(resp)

				return
			}
		}
	}

	p.writeOut(nullResponse(msg.ID))
}

// effectiveConfig returns the config path actually given to the backend for
// a file: a merged project-local config when one exists, otherwise the
// profile config. A failed merge degrades to the profile config.
func (p *Proxy) effectiveConfig(ctx context.Context, filePath, profileConfig string) string {
	tc, err := mergeconf.Build(filepath.Dir(filePath), profileConfig)
	if err != nil {
		log.WithContext(ctx).Warn("build merged config", slog.String("path", filePath), slog.Any("error", err))

		return profileConfig
	}
	if tc == nil {
		return profileConfig
	}

	p.guards = append(p.guards, tc)

	return tc.Path()
}

// ensureBackend returns the backend for configPath, spawning one if needed.
// Lazily spawned backends replay the retained initialize parameters when
// handshake is set.
func (p *Proxy) ensureBackend(ctx context.Context, configPath string, handshake bool) (*Backend, error) {
	if b, ok := p.reg.Get(configPath); ok {
		return b, nil
	}

	_, span := p.tracer.Start(ctx, "spawn-backend", trace.WithAttributes(
		attribute.String("config", configPath),
	))
	defer span.End()

	b, err := p.spawn(p.cfg.DprintPath(), configPath)
	if err != nil {
		return nil, err
	}

	p.reg.Put(configPath, b)

	if handshake && p.initParams != nil {
		p.replayHandshake(b, configPath)
	}

	return b, nil
}

// replayHandshake performs initialize+initialized on a lazily spawned
// backend so it is ready before the triggering message is forwarded.
func (p *Proxy) replayHandshake(b *Backend, configPath string) {
	init, err := p.initializeMessage(json.RawMessage("1"), configPath)
	if err != nil {
		return
	}

	err = b.Send(init)
	if err != nil {
		return
	}

	// The response is consumed here, not relayed.
	_, _ = b.Receive(p.readTimeout, p.relayNotification)

	initialized, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "initialized",
		"params":  map[string]any{},
	})
	if err != nil {
		return
	}

	_ = b.Send(initialized)
}

// initializeMessage builds an initialize request from the retained client
// parameters, overriding rootUri and rootPath to the config's directory so
// the backend knows which workspace it serves.
func (p *Proxy) initializeMessage(id json.RawMessage, configPath string) ([]byte, error) {
	params := map[string]any{}

	if p.initParams != nil {
		err := json.Unmarshal(p.initParams, &params)
		if err != nil {
			params = map[string]any{}
		}
	}

	configDir := filepath.Dir(configPath)
	params["rootUri"] = "file://" + configDir
	params["rootPath"] = configDir

	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "initialize",
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("build initialize message: %w", err)
	}

	return msg, nil
}

func (p *Proxy) broadcast(raw []byte) {
	for _, path := range p.reg.Paths() {
		b, ok := p.reg.Get(path)
		if !ok {
			continue
		}

		err := b.Send(raw)
		if err != nil {
			slog.Debug("broadcast", slog.String("config", path), slog.Any("error", err))
		}
	}
}

func (p *Proxy) relayNotification(body []byte) {
	err := p.out.Write(body)
	if err != nil {
		slog.Debug("relay notification", slog.Any("error", err))
	}
}

func (p *Proxy) writeOut(body []byte) {
	err := p.out.Write(body)
	if err != nil {
		slog.Warn("write to client", slog.Any("error", err))
	}
}

func (p *Proxy) releaseGuards() {
	for _, g := range p.guards {
		g.Release()
	}

	p.guards = nil
}

// nullResponse synthesizes a JSON-RPC response with a null result.
func nullResponse(id json.RawMessage) []byte {
	if id == nil {
		id = json.RawMessage("null")
	}

	return []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":null}`, id))
}
