package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/auravis/auravis/pkg/cli"
	"github.com/auravis/auravis/pkg/viz"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live terminal view of a session",
	Long: `Attach to a session over WebSocket and render its frames as live
coordinate bars, descriptors and training progress. Recent frames are
replayed on connect. Interrupt (Ctrl+C) to exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		session := resolveSession()
		c := newClient()
		wsURL, err := c.wsURL(session)
		if err != nil {
			return err
		}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", wsURL, err)
		}
		defer conn.Close()

		frames := make(chan *viz.Frame, 64)
		errs := make(chan error, 1)
		go func() {
			for {
				var reply struct {
					Type  string     `json:"type"`
					Frame *viz.Frame `json:"frame"`
					Error string     `json:"error"`
				}
				if err := conn.ReadJSON(&reply); err != nil {
					errs <- err
					return
				}
				if reply.Type == "frame" && reply.Frame != nil {
					select {
					case frames <- reply.Frame:
					default:
					}
				}
			}
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

		m := newMonitorView(session)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-sig:
				fmt.Print("\x1b[2J\x1b[H")
				return nil
			case err := <-errs:
				fmt.Print("\x1b[2J\x1b[H")
				return fmt.Errorf("connection lost: %w", err)
			case f := <-frames:
				m.observe(f)
			case <-ticker.C:
				m.render()
			}
		}
	},
}

// monitorView holds the latest frame and renders it with the shared TUI
// building blocks.
type monitorView struct {
	session string
	styles  cli.Styles
	last    *viz.Frame
	events  *cli.LogBuffer
	width   int
	height  int
}

func newMonitorView(session string) *monitorView {
	w, h := termSize()
	return &monitorView{
		session: session,
		styles:  cli.NewStyles(cli.DefaultTheme),
		events:  cli.NewLogBuffer(8),
		width:   w,
		height:  h,
	}
}

// observe records state transitions between consecutive frames.
func (m *monitorView) observe(f *viz.Frame) {
	prev := m.last
	m.last = f
	switch {
	case prev == nil:
		m.logf("connected, frame #%d", f.Seq)
	case !prev.Trained && f.Trained:
		m.logf("projector trained at frame #%d", f.Seq)
	case prev.Trained && !f.Trained:
		m.logf("projector reset at frame #%d", f.Seq)
	case f.Seq < prev.Seq:
		m.logf("session reset, frame numbering restarted")
	}
}

func (m *monitorView) logf(format string, args ...any) {
	_ = m.events.Add(time.Now().Format("15:04:05") + " " + fmt.Sprintf(format, args...))
}

// termSize reads COLUMNS/LINES with a conservative fallback; the monitor
// does not take the terminal into raw mode.
func termSize() (int, int) {
	w, h := 100, 30
	if v, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && v > 40 {
		w = v
	}
	if v, err := strconv.Atoi(os.Getenv("LINES")); err == nil && v > 15 {
		h = v
	}
	return w, h
}

func (m *monitorView) render() {
	status := "waiting for frames"
	if m.last != nil {
		if m.last.Trained {
			status = "trained"
		} else {
			status = fmt.Sprintf("training %3.0f%%", m.last.Progress*100)
		}
	}

	frame := cli.Frame{
		Styles: m.styles,
		Title:  "auravis " + m.session,
		Status: status,
		Sections: []cli.Section{
			{Label: " Position ", Content: m.position},
			{Label: " Signal ", Content: m.signal},
			{Label: " Events ", Content: m.events.Snapshot},
		},
		Help: "Ctrl+C to exit",
	}
	fmt.Print("\x1b[2J\x1b[H" + frame.Render(m.width, m.height))
}

func (m *monitorView) position() []string {
	if m.last == nil {
		return []string{"no frames yet"}
	}
	barWidth := max(m.width/2, 20)
	return []string{
		cli.Bar("x", m.last.X, barWidth),
		cli.Bar("y", m.last.Y, barWidth),
		cli.Bar("z", m.last.Z, barWidth),
	}
}

func (m *monitorView) signal() []string {
	if m.last == nil {
		return nil
	}
	f := m.last
	return []string{
		fmt.Sprintf("rms %.4f  centroid %.3f  rolloff %.3f", f.RMS, f.Centroid, f.Rolloff),
		fmt.Sprintf("spread %.3f  tonality %.3f  zcr %.3f", f.Spread, f.Tonality, f.ZCR),
		fmt.Sprintf("frame #%d at %s", f.Seq, f.Timestamp.Time().Format("15:04:05.000")),
	}
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
