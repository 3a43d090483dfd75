package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	bidib "github.com/trinnguyen/libbidib"
	"github.com/trinnguyen/libbidib/pkg/board"
	"github.com/trinnguyen/libbidib/pkg/host"
	"github.com/trinnguyen/libbidib/pkg/serial"
)

var (
	device     string
	baud       int
	boardTable string
	verbose    bool
)

func newHost() (*host.Host, error) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	var registry *board.Registry
	if boardTable != "" {
		var err error
		registry, err = board.ParseFile(boardTable)
		if err != nil {
			return nil, fmt.Errorf("load board table : %w", err)
		}
	}
	port, err := serial.NewPort("device", device, baud)
	if err != nil {
		return nil, err
	}
	return host.NewHost(port, registry, log.StandardLogger(), nil), nil
}

func connect(h *host.Host) error {
	if err := h.Connect(); err != nil {
		return fmt.Errorf("connect %v : %w", device, err)
	}
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "bidib",
		Short:        "Talk to a BiDiB layout over a serial interface",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&device, "device", "d", "/dev/ttyUSB0", "serial device")
	rootCmd.PersistentFlags().IntVarP(&baud, "baud", "b", 115200, "baud rate")
	rootCmd.PersistentFlags().StringVarP(&boardTable, "boards", "t", "", "board table ini file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	pingCmd := &cobra.Command{
		Use:   "ping <board>",
		Short: "Ping a board and wait for the pong",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost()
			if err != nil {
				return err
			}
			pong := make(chan bidib.Message, 1)
			h.SetCallback(func(msg bidib.Message) {
				if msg.Type == bidib.MsgSysPong {
					select {
					case pong <- msg:
					default:
					}
				}
			})
			if err := connect(h); err != nil {
				return err
			}
			defer h.Disconnect()
			actionID, err := h.Ping(args[0], 0xAA)
			if err != nil {
				return err
			}
			select {
			case msg := <-pong:
				fmt.Printf("pong from %v (action id %d)\n", msg.Addr, actionID)
				return nil
			case <-time.After(3 * time.Second):
				return fmt.Errorf("no pong from %v", args[0])
			}
		},
	}

	identifyCmd := &cobra.Command{
		Use:   "identify <board> <on|off>",
		Short: "Switch the identify indicator of a board",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost()
			if err != nil {
				return err
			}
			if err := connect(h); err != nil {
				return err
			}
			defer h.Disconnect()
			state := uint8(0x00)
			if args[1] == "on" {
				state = 0x01
			}
			_, err = h.Identify(args[0], state)
			return err
		},
	}

	monitorCmd := &cobra.Command{
		Use:   "monitor",
		Short: "Log decoded upstream traffic until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newHost()
			if err != nil {
				return err
			}
			h.SetCallback(func(msg bidib.Message) {
				log.Infof("from %v seq %d type 0x%02x data % x action id %d",
					msg.Addr, msg.Seqnum, msg.Type, msg.Data, msg.ActionID)
			})
			if err := connect(h); err != nil {
				return err
			}
			defer h.Disconnect()
			h.SystemEnable()
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			h.SystemDisable()
			return nil
		},
	}

	rootCmd.AddCommand(pingCmd, identifyCmd, monitorCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
