package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tmpim/nfp"
	"github.com/tmpim/nfp/config"
	"github.com/tmpim/nfp/logger"
)

const stateTimeout = 3 * time.Second

// Subscription is a set of packet kinds a client wants to receive.
type Subscription uint32

// Possible subscription flags.
const (
	SubscriptionProgress = Subscription(1 << iota)
	SubscriptionState
	SubscriptionAll = Subscription(0)
)

// Possible packet types. Every packet is a binary message whose first byte
// is the type, followed by a JSON body.
const (
	PacketState = iota + 1
	PacketProgress
	PacketDone
	PacketError
)

// Conversion states.
const (
	StateIdle = iota + 1
	StateConverting
)

// WebsocketControl is sent by clients to identify and subscribe.
type WebsocketControl struct {
	ID           string `json:"id"`
	Subscription uint32 `json:"subscription"`
}

// IsSubscribedTo returns whether or not the client subscription is subscribed
// to the given subscription.
func (s Subscription) IsSubscribedTo(sub Subscription) bool {
	return (s & sub) == sub
}

// Client is a websocket connected client.
type Client struct {
	mutex         *sync.Mutex
	id            string
	conn          *websocket.Conn
	subscriptions Subscription
}

// State is a snapshot of the manager.
type State struct {
	State   int
	Slug    string
	Input   string
	Title   string
	Written int
	Started time.Time
	Err     string

	cancel func()
}

func (s *State) MarshalJSON() ([]byte, error) {
	type stateJSON struct {
		State   int    `json:"state"`
		Slug    string `json:"slug,omitempty"`
		Input   string `json:"input,omitempty"`
		Title   string `json:"title,omitempty"`
		Written int    `json:"written"`
		Started int64  `json:"started,omitempty"`
		Error   string `json:"error,omitempty"`
	}

	var started int64
	if !s.Started.IsZero() {
		started = s.Started.Unix()
	}

	return json.Marshal(stateJSON{
		State:   s.State,
		Slug:    s.Slug,
		Input:   s.Input,
		Title:   s.Title,
		Written: s.Written,
		Started: started,
		Error:   s.Err,
	})
}

// Request asks the manager to convert an input. Zero fields fall back to
// the manager's base configuration.
type Request struct {
	Input    string  `json:"input"`
	Slug     string  `json:"slug"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Start    string  `json:"start"`
	Duration string  `json:"duration"`
}

func (r Request) apply(base config.Config) config.Config {
	cfg := base
	if r.Slug != "" {
		cfg.Slug = r.Slug
	}
	if r.Width != 0 {
		cfg.Width = r.Width
	}
	if r.Height != 0 {
		cfg.Height = r.Height
	}
	if r.FPS != 0 {
		cfg.FPS = r.FPS
	}
	if r.Start != "" {
		cfg.Start = r.Start
	}
	if r.Duration != "" {
		cfg.Duration = r.Duration
	}
	return cfg
}

// RunFunc performs one conversion. ConvertInput is the default.
type RunFunc func(ctx context.Context, input string, dec nfp.DecoderOptions,
	opts nfp.ConvertOptions) (*nfp.Result, error)

// Manager runs one conversion at a time and reports its progress to
// websocket clients.
type Manager struct {
	clientsMutex *sync.Mutex
	clients      []*Client

	stateCond *sync.Cond
	state     State

	base config.Config
	run  RunFunc
	log  logger.Logger
}

// NewManager returns an idle manager writing conversions below base.Root.
func NewManager(base config.Config, log logger.Logger) *Manager {
	return &Manager{
		clientsMutex: new(sync.Mutex),
		stateCond:    sync.NewCond(new(sync.Mutex)),
		state:        State{State: StateIdle},
		base:         base,
		run:          ConvertInput,
		log:          log.WithComponent("stream"),
	}
}

// SetRunner replaces the function performing conversions.
func (m *Manager) SetRunner(run RunFunc) {
	m.run = run
}

// Broadcast sends data to every client subscribed to sub.
func (m *Manager) Broadcast(sub Subscription, data ...[]byte) {
	m.clientsMutex.Lock()
	clientCopy := make([]*Client, len(m.clients))
	copy(clientCopy, m.clients)
	m.clientsMutex.Unlock()

	for _, client := range clientCopy {
		client.mutex.Lock()
		if client.subscriptions.IsSubscribedTo(sub) {
			for _, d := range data {
				client.conn.WriteMessage(websocket.BinaryMessage, d)
			}
		}
		client.mutex.Unlock()
	}
}

func (m *Manager) broadcastJSON(sub Subscription, packet byte, v interface{}) {
	d, err := json.Marshal(v)
	if err != nil {
		m.log.Error("Failed to encode packet %d: %s", packet, err)
		return
	}

	m.Broadcast(sub, append([]byte{packet}, d...))
}

// HandleConn serves a websocket client until it disconnects.
func (m *Manager) HandleConn(conn *websocket.Conn) {
	m.clientsMutex.Lock()
	client := &Client{
		mutex:         new(sync.Mutex),
		conn:          conn,
		subscriptions: 0,
	}
	m.clients = append(m.clients, client)
	m.clientsMutex.Unlock()

	defer func() {
		m.clientsMutex.Lock()
		defer m.clientsMutex.Unlock()

		for i, c := range m.clients {
			if c == client {
				m.clients = append(m.clients[:i], m.clients[i+1:]...)
				return
			}
		}
	}()

	for {
		msgType, data, err := client.conn.ReadMessage()
		if err != nil {
			m.log.Debug("Client disconnected: %s", err)
			return
		}

		if msgType != websocket.BinaryMessage && msgType != websocket.TextMessage {
			continue
		}

		var controlMsg WebsocketControl
		err = json.Unmarshal(data, &controlMsg)
		if err != nil {
			m.log.Warn("Failed to unmarshal control message: %s", err)
			continue
		}

		client.mutex.Lock()
		client.id = controlMsg.ID
		client.subscriptions = Subscription(controlMsg.Subscription)

		if client.subscriptions.IsSubscribedTo(SubscriptionState) {
			state := m.State()
			d, err := state.MarshalJSON()
			if err == nil {
				client.conn.WriteMessage(websocket.BinaryMessage, append([]byte{PacketState}, d...))
			}
		}
		client.mutex.Unlock()
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.stateCond.L.Lock()
	defer m.stateCond.L.Unlock()

	return m.state
}

// updateState replaces the state if the current state is one of
// requiredStates, and tells clients about it.
func (m *Manager) updateState(state State, requiredStates []int) bool {
	m.stateCond.L.Lock()

	matched := false
	for _, required := range requiredStates {
		if m.state.State == required {
			matched = true
		}
	}

	if !matched {
		m.stateCond.L.Unlock()
		return false
	}

	m.state = state
	m.stateCond.Broadcast()
	newState := m.state
	m.stateCond.L.Unlock()

	m.broadcastJSON(SubscriptionState, PacketState, &newState)

	return true
}

// WaitForState blocks until the manager reaches state or ctx is done.
func (m *Manager) WaitForState(ctx context.Context, state int) (State, bool) {
	wrappedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-wrappedCtx.Done()
		m.stateCond.L.Lock()
		defer m.stateCond.L.Unlock()

		m.stateCond.Broadcast()
	}()

	m.stateCond.L.Lock()
	defer m.stateCond.L.Unlock()

	for m.state.State != state {
		if ctx.Err() != nil {
			return State{}, false
		}
		m.stateCond.Wait()
	}

	return m.state, true
}

// Start begins converting req in the background. It fails if a conversion
// is already running.
func (m *Manager) Start(req Request) (State, error) {
	if req.Input == "" {
		return State{}, errors.New("stream: start: input must be specified")
	}

	cfg := req.apply(m.base)
	if err := cfg.Validate(); err != nil {
		return State{}, err
	}
	if !config.ValidSlug(cfg.Slug) {
		return State{}, fmt.Errorf("stream: start: invalid slug %q", cfg.Slug)
	}

	title := FileTitle(req.Input)
	if IsURL(req.Input) {
		title = req.Input
	}

	ctx, cancel := context.WithCancel(context.Background())
	if !m.updateState(State{
		State:   StateConverting,
		Slug:    cfg.Slug,
		Input:   req.Input,
		Title:   title,
		Started: time.Now(),
		cancel:  cancel,
	}, []int{StateIdle}) {
		cancel()
		return State{}, errors.New("stream: start: a conversion is already running")
	}

	m.log.Info("Converting %s to %s", req.Input, cfg.Slug)

	go m.convert(ctx, cancel, cfg, req.Input)

	return m.State(), nil
}

func (m *Manager) convert(ctx context.Context, cancel func(), cfg config.Config, input string) {
	defer cancel()

	dec := nfp.DecoderOptions{
		FFmpegPath: cfg.FFmpegPath,
		Geometry:   nfp.Geometry{Width: cfg.Width, Height: cfg.Height},
		FPS:        cfg.FPS,
		Start:      cfg.Start,
		Duration:   cfg.Duration,
		Debug:      cfg.Debug,
	}

	opts := nfp.ConvertOptions{
		OutputDir:    filepath.Join(cfg.Root, cfg.Slug),
		Geometry:     dec.Geometry,
		FPS:          cfg.FPS,
		Slug:         cfg.Slug,
		Workers:      cfg.Workers,
		Preview:      cfg.Preview,
		PreviewScale: cfg.PreviewScale,
		Logger:       m.log,
		OnProgress:   m.progress,
	}

	result, err := m.run(ctx, input, dec, opts)

	final := State{State: StateIdle, Slug: cfg.Slug, Input: input}
	if err != nil {
		m.log.Error("Conversion of %s failed: %s", input, err)
		final.Err = err.Error()
		m.broadcastJSON(SubscriptionAll, PacketError, map[string]string{
			"slug":  cfg.Slug,
			"error": err.Error(),
		})
	} else {
		final.Written = result.Manifest.FrameCount
		m.broadcastJSON(SubscriptionAll, PacketDone, result.Manifest)
	}

	if !m.updateState(final, []int{StateConverting}) {
		m.log.Warn("State inconsistency, expected converting")
	}
}

func (m *Manager) progress(p nfp.Progress) {
	m.stateCond.L.Lock()
	m.state.Written = p.Written
	slug := m.state.Slug
	m.stateCond.L.Unlock()

	m.broadcastJSON(SubscriptionProgress, PacketProgress, map[string]interface{}{
		"slug":    slug,
		"frame":   p.Frame,
		"written": p.Written,
	})
}

// Cancel stops the running conversion and waits for the manager to become
// idle.
func (m *Manager) Cancel() (State, error) {
	state := m.State()
	if state.State != StateConverting || state.cancel == nil {
		return State{}, errors.New("stream: cancel: no conversion is running")
	}

	state.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()

	finalState, ok := m.WaitForState(ctx, StateIdle)
	if !ok {
		return State{}, errors.New("stream: cancel: timeout waiting for conversion to stop")
	}

	return finalState, nil
}

// Video returns the validated manifest of a finished conversion.
func (m *Manager) Video(slug string) (*nfp.Manifest, error) {
	if !config.ValidSlug(slug) {
		return nil, fmt.Errorf("stream: video: invalid slug %q", slug)
	}

	return nfp.ReadManifest(filepath.Join(m.base.Root, slug))
}

// Videos returns the slugs of every finished conversion below the root,
// sorted by name.
func (m *Manager) Videos() ([]string, error) {
	entries, err := os.ReadDir(m.base.Root)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("stream: list videos: %w", err)
	}

	slugs := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := nfp.ReadManifest(filepath.Join(m.base.Root, e.Name())); err == nil {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)

	return slugs, nil
}
