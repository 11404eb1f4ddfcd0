// Command antcaps opens an ANT stick, prints its reported capabilities, and
// exits. It mirrors the capability-interrogation walkthrough from the
// original ant.core demos, rebuilt as a small cobra CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bernarma/go-ant/ant"
	"github.com/bernarma/go-ant/config"
	"github.com/bernarma/go-ant/transport/serial"
)

var deviceFlag string

func main() {
	root := &cobra.Command{
		Use:   "antcaps",
		Short: "Print the capabilities reported by an ANT USB stick",
		RunE:  run,
	}
	root.Flags().StringVar(&deviceFlag, "device", "", "serial device path (overrides ANT_DEVICE)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "antcaps:", err)
		os.Exit(1)
	}
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

	transport := serial.New(cfg.Device)
	if cfg.Baud != 0 {
		transport = serial.NewWithBaud(cfg.Device, cfg.Baud)
	}
	node := ant.NewNode(transport)

	if err := node.Start(); err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	defer node.Stop(true)

	numChannels, numNetworks, opts := node.GetCapabilities()
	fmt.Printf("Maximum channels: %d\n", numChannels)
	fmt.Printf("Maximum network keys: %d\n", numNetworks)
	fmt.Printf("Standard options: %#02x\n", opts.Std)
	fmt.Printf("Advanced options: %#02x\n", opts.Adv)
	fmt.Printf("Advanced options 2: %#02x\n", opts.Adv2)
	return nil
}
