package commands

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/auravis/auravis/pkg/audio/pcm"
	"github.com/auravis/auravis/pkg/cli"
	"github.com/auravis/auravis/pkg/viz"
)

var (
	simScenario   string
	simFreq       float64
	simSeconds    float64
	simAmplitude  float64
	simSampleRate int
	simChunkMS    int
	simRealtime   bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Stream synthetic audio to a session",
	Long: `Generate a synthetic signal (sine tone, noise, silence or a YAML
scenario) and stream it to the server as PCM chunks over WebSocket,
printing the returned frames.

Examples:
  auravis simulate --freq 440 --seconds 10
  auravis simulate --scenario sweep.yaml --realtime

Scenario file:
  steps:
    - kind: silence
      seconds: 1
    - kind: sine
      freq: 440
      seconds: 5
      amplitude: 0.6
    - kind: noise
      seconds: 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenario := Scenario{Steps: []ScenarioStep{{
			Kind:      "sine",
			Freq:      simFreq,
			Seconds:   simSeconds,
			Amplitude: simAmplitude,
		}}}
		if simScenario != "" {
			scenario = Scenario{}
			if err := cli.LoadRequest(simScenario, &scenario); err != nil {
				return err
			}
		}

		rng := rand.New(rand.NewPCG(1, 2))
		data, err := scenario.renderPCM(simSampleRate, rng)
		if err != nil {
			return err
		}

		c := newClient()
		wsURL, err := c.wsURL(resolveSession())
		if err != nil {
			return err
		}
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			return fmt.Errorf("dial %s: %w", wsURL, err)
		}
		defer conn.Close()

		// The server greets with a connected message before any frames.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var hello struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&hello); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}

		format, err := pcm.FormatForRate(simSampleRate)
		if err != nil {
			return err
		}
		chunkDur := time.Duration(simChunkMS) * time.Millisecond
		chunkBytes := int(format.BytesInDuration(chunkDur))
		if chunkBytes < 2 {
			return fmt.Errorf("chunk of %dms at %dHz is empty", simChunkMS, simSampleRate)
		}

		sent := 0
		for off := 0; off < len(data); off += chunkBytes {
			end := min(off+chunkBytes, len(data))
			if err := conn.WriteMessage(websocket.BinaryMessage, data[off:end]); err != nil {
				return fmt.Errorf("send chunk: %w", err)
			}
			sent++

			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
			var reply struct {
				Type  string     `json:"type"`
				Frame *viz.Frame `json:"frame"`
				Error string     `json:"error"`
			}
			if err := conn.ReadJSON(&reply); err != nil {
				return fmt.Errorf("read frame: %w", err)
			}
			if reply.Error != "" {
				return fmt.Errorf("server: %s", reply.Error)
			}
			if reply.Frame != nil {
				printFrame(reply.Frame)
			}
			if simRealtime {
				time.Sleep(chunkDur)
			}
		}

		if IsVerbose() {
			cli.PrintInfo("sent %d chunks (%s, %s of audio)", sent,
				cli.FormatBytes(int64(len(data))),
				cli.FormatDuration(format.Duration(int64(len(data)))))
		}
		return conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	},
}

func printFrame(f *viz.Frame) {
	out, err := json.Marshal(f)
	if err != nil {
		return
	}
	fmt.Println(string(out))
}

func init() {
	simulateCmd.Flags().StringVar(&simScenario, "scenario", "", "scenario file (YAML/JSON)")
	simulateCmd.Flags().Float64Var(&simFreq, "freq", 440, "tone frequency in Hz")
	simulateCmd.Flags().Float64Var(&simSeconds, "seconds", 5, "tone duration in seconds")
	simulateCmd.Flags().Float64Var(&simAmplitude, "amplitude", 0.5, "tone peak amplitude")
	simulateCmd.Flags().IntVar(&simSampleRate, "rate", 16000, "sample rate in Hz")
	simulateCmd.Flags().IntVar(&simChunkMS, "chunk", 100, "chunk size in milliseconds")
	simulateCmd.Flags().BoolVar(&simRealtime, "realtime", false, "pace chunks at real time")
	rootCmd.AddCommand(simulateCmd)
}
