package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/overtone/internal/formatter"
	"github.com/desertthunder/overtone/internal/repositories"
	"github.com/desertthunder/overtone/internal/shared"
	"github.com/desertthunder/overtone/internal/spotify"
)

// Model represents the overlay application state.
type Model struct {
	ctx          context.Context
	player       spotify.Player
	history      *repositories.HistoryRepository
	logger       *log.Logger
	playback     *spotify.Playback
	err          error
	width        int
	height       int
	pollInterval time.Duration
	volumeStep   int
	help         help.Model
	keys         keyMap
}

// ModelOpts contains dependencies and settings for the overlay.
type ModelOpts struct {
	Player       spotify.Player
	History      *repositories.HistoryRepository
	Logger       *log.Logger
	PollInterval time.Duration
	VolumeStep   int
}

// NewModel creates a new overlay model with the provided dependencies.
func NewModel(ctx context.Context, opts ModelOpts) *Model {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.VolumeStep <= 0 {
		opts.VolumeStep = 5
	}

	return &Model{
		ctx:          ctx,
		player:       opts.Player,
		history:      opts.History,
		logger:       opts.Logger,
		pollInterval: opts.PollInterval,
		volumeStep:   opts.VolumeStep,
		help:         help.New(),
		keys:         newKeyMap(),
	}
}

type tickMsg time.Time

type playbackMsg struct {
	playback *spotify.Playback
	err      error
}

type commandDoneMsg struct {
	err error
}

// Init starts the playback poll loop.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchPlayback(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetchPlayback(), m.tick())

	case playbackMsg:
		m.playback = msg.playback
		m.err = msg.err
		return m, nil

	case commandDoneMsg:
		m.err = msg.err
		// Commands take a moment to land on the device; refresh right away so
		// the overlay reflects the change before the next tick.
		return m, m.fetchPlayback()

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	return m, nil
}

// View renders the now-playing overlay.
func (m *Model) View() string {
	title := styles.title.Render("overtone")

	var body string
	switch {
	case m.err != nil:
		body = styles.err.Render(fmt.Sprintf("Error: %v", m.err))
	case m.playback == nil || m.playback.Item == nil:
		body = styles.dim.Render("Nothing playing")
	default:
		body = m.renderPlayback()
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n%s\n\n%s", title, body, helpView)
}

func (m *Model) renderPlayback() string {
	pb := m.playback
	track := pb.Item

	state := "▶"
	if !pb.IsPlaying {
		state = "⏸"
	}

	line := fmt.Sprintf("%s %s", state, styles.track.Render(track.Name))
	artist := styles.dim.Render(track.ArtistNames())
	if track.Album.Name != "" {
		artist = fmt.Sprintf("%s %s", artist, styles.dim.Render("• "+track.Album.Name))
	}

	progress := fmt.Sprintf("%s / %s",
		formatter.Duration(pb.ProgressMS),
		formatter.Duration(track.DurationMS),
	)

	device := ""
	if pb.Device.Name != "" {
		device = styles.dim.Render(fmt.Sprintf("%s · vol %d%%", pb.Device.Name, pb.Device.VolumePercent))
	}

	return fmt.Sprintf("%s\n%s\n%s\n%s", line, artist, styles.warn.Render(progress), device)
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchPlayback()
	case key.Matches(msg, m.keys.playPause):
		return m, m.togglePlayback()
	case key.Matches(msg, m.keys.next):
		return m, m.command(m.player.Next)
	case key.Matches(msg, m.keys.prev):
		return m, m.command(m.player.Previous)
	case key.Matches(msg, m.keys.volUp):
		return m, m.adjustVolume(m.volumeStep)
	case key.Matches(msg, m.keys.volDown):
		return m, m.adjustVolume(-m.volumeStep)
	}

	return m, nil
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) fetchPlayback() tea.Cmd {
	return func() tea.Msg {
		playback, err := m.player.CurrentPlayback(m.ctx)
		if err == nil {
			m.record(playback)
		}
		return playbackMsg{playback: playback, err: err}
	}
}

// record appends the current track to history; consecutive polls of the same
// track collapse into one row.
func (m *Model) record(playback *spotify.Playback) {
	if m.history == nil || playback == nil || playback.Item == nil {
		return
	}

	entry := repositories.Entry{
		TrackID: playback.Item.ID,
		Title:   playback.Item.Name,
		Artist:  playback.Item.ArtistNames(),
		Album:   playback.Item.Album.Name,
	}
	if _, err := m.history.Record(entry); err != nil {
		m.logger.Warn("failed to record play", "error", err)
	}
}

func (m *Model) togglePlayback() tea.Cmd {
	playing := m.playback != nil && m.playback.IsPlaying
	return func() tea.Msg {
		var err error
		if playing {
			err = m.player.Pause(m.ctx)
		} else {
			err = m.player.Play(m.ctx)
		}
		return commandDoneMsg{err: err}
	}
}

func (m *Model) command(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg{err: op(m.ctx)}
	}
}

func (m *Model) adjustVolume(delta int) tea.Cmd {
	current := 50
	if m.playback != nil {
		current = m.playback.Device.VolumePercent
	}
	return func() tea.Msg {
		return commandDoneMsg{err: m.player.SetVolume(m.ctx, current+delta)}
	}
}
