package main

import "time"

// RunFlags decouples cobra from the run logic for testing.
type RunFlags struct {
	ConfigPath    string
	Attempts      int
	Interval      time.Duration
	ProbeTimeout  time.Duration
	StopWait      time.Duration
	FailFast      bool
	UseOSEnv      bool
	EnvKVs        []string
	EnvFiles      []string
	LogDir        string
	LogLevel      string
	Verbose       bool
	NoColor       bool
	MetricsListen string
	HistoryDSN    string
}
