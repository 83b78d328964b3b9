// command line and configuration file
//
// Copyright 2026 The gqrx-scanner Authors.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/ini.v1"

	"gqrx-scanner/internal/bookmark"
	"gqrx-scanner/internal/gqrx"
	"gqrx-scanner/internal/mqttpub"
	"gqrx-scanner/internal/scanner"
	"gqrx-scanner/internal/udp"
)

// Options is everything the command line and the configuration file select.
type Options struct {
	Scan           scanner.Config
	RequestTimeout time.Duration
	Bookmarks      string
	LogFile        string
	LogMaxSize     int
	MQTT           mqttpub.Config
	Keyboard       bool
}

// settings are the raw flag values before conversion.
type settings struct {
	host            string
	port            int
	mode            string
	freq            int64
	span            int64
	min             int64
	max             int64
	step            int64
	delay           int64
	maxListen       int64
	speed           int64
	sweepSpeed      int64
	date            int
	squelchDelta    string
	squelchDeltaTop float64
	receiverSquelch bool
	udpListen       bool
	udpAddress      string
	udpWindow       int64
	tags            string
	verbose         bool
	timeout         int64
	confFile        string
	bookmarks       string
	logFile         string
	logMaxSize      int
	keyboard        bool
	mqttBroker      string
	mqttUsername    string
	mqttPassword    string
	mqttTopic       string
	mqttQoS         uint8
	mqttRetain      bool
}

func newFlagSet(s *settings, output io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet("gqrx-scanner", pflag.ContinueOnError)
	flags.SetOutput(output)
	flags.SortFlags = false

	defaultBookmarks, _ := bookmark.DefaultPath()

	flags.StringVarP(&s.host, "host", "h", gqrx.DefaultHost, "name of the gqrx host")
	flags.IntVarP(&s.port, "port", "p", gqrx.DefaultPort, "gqrx remote control port")
	flags.StringVarP(&s.mode, "mode", "m", "sweep", "scan mode: sweep or bookmark")
	flags.Int64VarP(&s.freq, "freq", "f", 0, "center frequency in Hz (default the frequency gqrx is tuned to)")
	flags.Int64Var(&s.span, "span", scanner.DefaultCenterSpan, "sweep +/- this many Hz around the center frequency")
	flags.Int64VarP(&s.min, "min", "b", 0, "frequency range begins with this frequency in Hz")
	flags.Int64VarP(&s.max, "max", "e", 0, "frequency range ends with this frequency in Hz")
	flags.Int64VarP(&s.step, "step", "s", scanner.DefaultStep, "frequency step in Hz")
	flags.Int64VarP(&s.delay, "delay", "d", scanner.DefaultDelay.Milliseconds(), "lingering time in milliseconds before the scan resumes")
	flags.Int64VarP(&s.maxListen, "max-listen", "l", 0, "maximum time in milliseconds to listen to an active frequency (0 = no maximum)")
	flags.Int64VarP(&s.speed, "speed", "x", scanner.DefaultSpeed.Milliseconds(), "time in milliseconds spent on each bookmark")
	flags.Int64Var(&s.sweepSpeed, "sweep-speed", scanner.DefaultSweepSpeed.Milliseconds(), "time in milliseconds spent on each sweep frequency")
	flags.IntVarP(&s.date, "date", "y", 0, "date format: 0 = mm-dd-yy, 1 = dd-mm-yy")
	flags.StringVarP(&s.squelchDelta, "squelch_delta", "q", "0", "dB above the squelch level; prefix with 'a' for dB above the noise floor (e.g. a6.5)")
	flags.Float64VarP(&s.squelchDeltaTop, "squelch_delta_top", "a", 0, "ignore levels this many dB above the noise floor (0 = no ceiling)")
	flags.BoolVar(&s.receiverSquelch, "receiver-squelch", false, "set the gqrx squelch to the scan threshold")
	flags.BoolVarP(&s.udpListen, "udp_listen", "u", false, "trigger listening on gqrx UDP audio (gqrx >= 2.17.5)")
	flags.StringVar(&s.udpAddress, "udp-address", udp.DefaultAddress, "local address gqrx sends UDP audio to")
	flags.Int64Var(&s.udpWindow, "udp-window", scanner.DefaultUDPWindow.Milliseconds(), "milliseconds a UDP datagram counts as activity")
	flags.StringVarP(&s.tags, "tags", "t", "", "bookmark tags to scan, separated by '|' (bookmark mode only)")
	flags.BoolVarP(&s.verbose, "verbose", "v", false, "show verbose output")
	flags.Int64Var(&s.timeout, "timeout", gqrx.DefaultTimeout.Milliseconds(), "gqrx request timeout in milliseconds")
	flags.StringVar(&s.confFile, "conf", "", "configuration file")
	flags.StringVar(&s.bookmarks, "bookmarks", defaultBookmarks, "gqrx bookmarks file")
	flags.StringVar(&s.logFile, "log-file", "", "also log to this file, rotated")
	flags.IntVar(&s.logMaxSize, "log-max-size", 10, "log file size in megabytes before rotation")
	flags.BoolVar(&s.keyboard, "keyboard", true, "pause (space), skip (n) and quit (q) from the terminal")
	flags.StringVar(&s.mqttBroker, "mqtt-broker", "", "publish scan events to this MQTT broker (e.g. tcp://localhost:1883)")
	flags.StringVar(&s.mqttUsername, "mqtt-username", "", "MQTT user name")
	flags.StringVar(&s.mqttPassword, "mqtt-password", "", "MQTT password")
	flags.StringVar(&s.mqttTopic, "mqtt-topic", mqttpub.DefaultTopicPrefix, "MQTT topic prefix")
	flags.Uint8Var(&s.mqttQoS, "mqtt-qos", 0, "MQTT quality of service")
	flags.BoolVar(&s.mqttRetain, "mqtt-retain", false, "retain MQTT messages")

	return flags
}

// ParseOptions parses the command line and, when --conf is given, fills the
// settings that were not set on the command line from the configuration
// file.
func ParseOptions(args []string, output io.Writer) (*Options, error) {
	var s settings
	flags := newFlagSet(&s, output)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	if s.confFile != "" {
		if err := readConfigFile(s.confFile, flags); err != nil {
			return nil, fmt.Errorf("error reading configuration file: %w", err)
		}
	}

	return s.options()
}

// readConfigFile applies the settings of the default section and of the
// [mqtt] section (as mqtt-<key>) to the flags not given on the command line.
func readConfigFile(configFile string, flags *pflag.FlagSet) (err error) {
	config, err := ini.Load(configFile)
	if err != nil {
		return err
	}
	config.BlockMode = false

	for _, section := range config.Sections() {
		var prefix string
		switch section.Name() {
		case ini.DefaultSection:
		case "mqtt":
			prefix = "mqtt-"
		default:
			return fmt.Errorf("unknown section [%s]", section.Name())
		}

		for _, key := range section.Keys() {
			if err = applyConfigSetting(flags, prefix+key.Name(), key.String()); err != nil {
				return err
			}
		}
	}
	return
}

func applyConfigSetting(flags *pflag.FlagSet, setting string, value string) error {
	flag := flags.Lookup(setting)
	if flag == nil || setting == "conf" {
		return fmt.Errorf("unknown setting: %s", setting)
	}
	if flag.Changed {
		return nil
	}
	if err := flags.Set(setting, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", setting, err)
	}
	return nil
}

func parseSquelchDelta(value string) (delta float64, auto bool, err error) {
	value = strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(value, "a"); ok {
		auto = true
		value = rest
	}
	delta, err = strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid squelch delta: %q", value)
	}
	return
}

func parseTags(value string) []string {
	if value == "" {
		return nil
	}
	return strings.Split(value, "|")
}

func milliseconds(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (s *settings) options() (*Options, error) {
	mode, err := scanner.ParseMode(s.mode)
	if err != nil {
		return nil, err
	}
	var dateFormat scanner.DateFormat
	switch s.date {
	case 0:
		dateFormat = scanner.DateMDY
	case 1:
		dateFormat = scanner.DateDMY
	default:
		return nil, fmt.Errorf("invalid date format: %d", s.date)
	}
	delta, auto, err := parseSquelchDelta(s.squelchDelta)
	if err != nil {
		return nil, err
	}

	config := scanner.DefaultConfig()
	config.Host = s.host
	config.Port = s.port
	config.Mode = mode
	config.Center = s.freq
	config.CenterSpan = s.span
	config.Min = s.min
	config.Max = s.max
	config.Step = s.step
	config.Delay = milliseconds(s.delay)
	config.MaxListen = milliseconds(s.maxListen)
	config.Speed = milliseconds(s.speed)
	config.SweepSpeed = milliseconds(s.sweepSpeed)
	config.DateFormat = dateFormat
	config.SquelchDelta = delta
	config.SquelchDeltaAuto = auto
	config.SquelchDeltaTop = s.squelchDeltaTop
	config.ReceiverSquelch = s.receiverSquelch
	config.UDPListen = s.udpListen
	config.UDPAddress = s.udpAddress
	config.UDPWindow = milliseconds(s.udpWindow)
	config.Tags = parseTags(s.tags)
	config.Verbose = s.verbose

	if s.timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive: %d", s.timeout)
	}

	return &Options{
		Scan:           config,
		RequestTimeout: milliseconds(s.timeout),
		Bookmarks:      s.bookmarks,
		LogFile:        s.logFile,
		LogMaxSize:     s.logMaxSize,
		Keyboard:       s.keyboard,
		MQTT: mqttpub.Config{
			Broker:      s.mqttBroker,
			Username:    s.mqttUsername,
			Password:    s.mqttPassword,
			TopicPrefix: s.mqttTopic,
			QoS:         s.mqttQoS,
			Retain:      s.mqttRetain,
		},
	}, nil
}

// NeedsCurrentFrequency reports whether the sweep is centered on the
// frequency gqrx is tuned to.
func (o *Options) NeedsCurrentFrequency() bool {
	return o.Scan.Mode == scanner.ModeSweep && o.Scan.Center == 0 && !o.Scan.HasRange()
}
