// Command antlisten opens a broadcast-receive channel against an ANT+ heart
// rate monitor and prints every reading it hears, optionally recording the
// session's open and close events to an event log (transport reads and
// writes are not recorded). It rebuilds the paired
// basicchannel/processevents walkthroughs from the original ant.core demos
// as a single cobra CLI.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bernarma/go-ant/ant"
	"github.com/bernarma/go-ant/config"
	"github.com/bernarma/go-ant/eventlog"
	"github.com/bernarma/go-ant/transport/serial"
)

// antPlusNetworkKey is the public ANT+ network key every ANT+ device
// (including heart rate monitors) shares.
var antPlusNetworkKey = [8]byte{0xB9, 0xA5, 0x21, 0xFB, 0xBD, 0x72, 0xC3, 0x45}

var (
	deviceFlag   string
	durationFlag time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "antlisten",
		Short: "Listen for ANT+ heart rate monitor broadcasts",
		RunE:  run,
	}
	root.Flags().StringVar(&deviceFlag, "device", "", "serial device path (overrides ANT_DEVICE)")
	root.Flags().DurationVar(&durationFlag, "duration", 120*time.Second, "how long to listen before shutting down")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "antlisten:", err)
		os.Exit(1)
	}
}

// hrmListener prints the most recent byte of every broadcast payload, which
// is where an ANT+ HRM profile carries the instantaneous heart rate.
type hrmListener struct{}

func (hrmListener) OnMessage(msg ant.TypedMessage) {
	bcast, ok := msg.(*ant.ChannelBroadcastDataMessage)
	if !ok {
		return
	}
	data := bcast.Data()
	if len(data) == 0 {
		return
	}
	fmt.Printf("Heart rate: %d bpm\n", data[len(data)-1])
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromEnv()
	if err != nil && deviceFlag == "" {
		return err
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	if deviceFlag != "" {
		cfg.Device = deviceFlag
	}
	if cfg.LogLevel != "" {
		ant.SetLevel(cfg.LogLevel)
	}

	var logWriter *eventlog.Writer
	if cfg.LogFile != "" {
		f, err := os.Create(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logWriter, err = eventlog.NewWriter(f)
		if err != nil {
			return fmt.Errorf("writing log header: %w", err)
		}
	}

	transport := serial.New(cfg.Device)
	if cfg.Baud != 0 {
		transport = serial.NewWithBaud(cfg.Device, cfg.Baud)
	}
	node := ant.NewNode(transport)

	if err := node.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	defer node.Stop(true)
	if logWriter != nil {
		logWriter.LogOpen()
	}

	netKey, err := node.NetworkKeyAt(0)
	if err != nil {
		return fmt.Errorf("looking up network key slot: %w", err)
	}
	netKey.SetName("N:ANT+")
	key := antPlusNetworkKey
	if cfg.NetworkKey != "" {
		raw, err := hex.DecodeString(cfg.NetworkKey)
		if err != nil || len(raw) != len(key) {
			return fmt.Errorf("invalid ANT_NETWORK_KEY: want 16 hex characters")
		}
		copy(key[:], raw)
	}
	if err := node.SetNetworkKey(0, &key); err != nil {
		return fmt.Errorf("setting network key: %w", err)
	}

	channel, err := node.GetFreeChannel()
	if err != nil {
		return fmt.Errorf("allocating channel: %w", err)
	}
	channel.SetName("C:HRM")

	if err := channel.Assign("N:ANT+", ant.ChannelTypeTwowayReceive); err != nil {
		return fmt.Errorf("assigning channel: %w", err)
	}
	if err := channel.SetID(0, 120, 0); err != nil {
		return fmt.Errorf("setting channel ID: %w", err)
	}
	if err := channel.SetSearchTimeout(ant.TimeoutNever); err != nil {
		return fmt.Errorf("setting search timeout: %w", err)
	}
	if err := channel.SetPeriod(8070); err != nil {
		return fmt.Errorf("setting channel period: %w", err)
	}
	if err := channel.SetFrequency(57); err != nil {
		return fmt.Errorf("setting channel frequency: %w", err)
	}

	channel.RegisterCallback(hrmListener{})

	if err := channel.Open(); err != nil {
		return fmt.Errorf("opening channel: %w", err)
	}

	fmt.Printf("Listening for HR monitor events (%s)...\n", durationFlag)
	time.Sleep(durationFlag)

	if err := channel.Close(); err != nil {
		return fmt.Errorf("closing channel: %w", err)
	}
	if err := channel.Unassign(); err != nil {
		return fmt.Errorf("unassigning channel: %w", err)
	}
	if logWriter != nil {
		logWriter.LogClose()
	}
	return nil
}
