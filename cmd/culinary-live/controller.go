package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/redilah/CulinaryAI/runtime/events"
	"github.com/redilah/CulinaryAI/runtime/logger"
	"github.com/redilah/CulinaryAI/runtime/session"
)

// liveSession is the part of session.Assistant the controller drives.
type liveSession interface {
	Start(ctx context.Context, step string) error
	Stop() error
	State() session.State
	SessionID() string
}

// visionSwitch is the part of streaming.FramePump the controller drives.
type visionSwitch interface {
	SetLive(on bool)
	SetVision(on bool)
	Vision() bool
}

// statusPrinter is the part of ui.Console the controller writes to.
type statusPrinter interface {
	Status(format string, args ...any)
	Success(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// errQuit ends the command loop.
var errQuit = errors.New("quit")

const helpText = "Perintah: [enter]/s mulai/berhenti, v kamera, n langkah berikutnya, p langkah sebelumnya, q keluar"

// controller maps keyboard commands to session and camera actions.
type controller struct {
	// mu serializes commands with session-ended notifications.
	mu sync.Mutex

	session liveSession
	vision  visionSwitch
	out     statusPrinter
	steps   []string
	step    int
	// stepText is used when the step was given verbatim.
	stepText string
}

func (c *controller) currentStep() string {
	if c.step >= 0 && c.step < len(c.steps) {
		return c.steps[c.step]
	}
	return c.stepText
}

func (c *controller) start(ctx context.Context) error {
	if err := c.session.Start(ctx, c.currentStep()); err != nil {
		c.vision.SetLive(false)
		return err
	}
	c.vision.SetLive(true)
	return nil
}

func (c *controller) stop() {
	c.vision.SetLive(false)
	if err := c.session.Stop(); err != nil {
		logger.Warn("Stopping session failed", "error", err)
	}
}

// toggle starts an idle session and stops any other.
func (c *controller) toggle(ctx context.Context) {
	if c.session.State() == session.StateIdle {
		if err := c.start(ctx); err != nil {
			c.out.Error("Gagal memulai sesi: %v", err)
		}
		return
	}
	c.stop()
}

// moveStep changes the current step and restarts a live session so the new
// step reaches the instruction.
func (c *controller) moveStep(ctx context.Context, delta int) {
	if len(c.steps) == 0 {
		c.out.Warn("Resep ini tidak punya daftar langkah")
		return
	}
	next := c.step + delta
	if next < 0 || next >= len(c.steps) {
		c.out.Warn("Tidak ada langkah lagi")
		return
	}
	c.step = next
	c.out.Status("Langkah %d/%d: %s", c.step+1, len(c.steps), c.steps[c.step])

	if c.session.State() == session.StateIdle {
		return
	}
	c.stop()
	if err := c.start(ctx); err != nil {
		c.out.Error("Gagal memulai ulang sesi: %v", err)
	}
}

// Attach turns the camera's live gate off whenever the current session
// ends on its own, e.g. on a remote close. It returns the unsubscribe func.
func (c *controller) Attach(bus *events.EventBus) func() {
	return bus.Subscribe(events.EventSessionStopped, func(evt *events.Event) {
		go c.sessionEnded(evt.SessionID)
	})
}

// sessionEnded clears the live gate unless a newer session is running.
func (c *controller) sessionEnded(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sessionID != c.session.SessionID() || c.session.State() == session.StateActive {
		return
	}
	c.vision.SetLive(false)
}

// shutdown stops the session and the camera.
func (c *controller) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop()
}

// handle runs one command line. It returns errQuit for q.
func (c *controller) handle(ctx context.Context, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "s":
		c.toggle(ctx)
	case "v":
		on := !c.vision.Vision()
		c.vision.SetVision(on)
		if on {
			c.out.Status("Kamera aktif")
		} else {
			c.out.Status("Kamera mati")
		}
	case "n":
		c.moveStep(ctx, 1)
	case "p":
		c.moveStep(ctx, -1)
	case "q", "quit", "exit":
		return errQuit
	case "?", "h", "help":
		c.out.Status(helpText)
	default:
		c.out.Warn("Perintah tidak dikenal: %q", line)
	}
	return nil
}

// loop reads commands from r until q, EOF or ctx is done. It returns nil
// on a normal exit.
func (c *controller) loop(ctx context.Context, r io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if err := c.handle(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
	}
}
